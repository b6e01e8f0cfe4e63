package simulator

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/gsmgate/pkg/device"
	"github.com/germanamz/gsmgate/pkg/envelope"
	"github.com/germanamz/gsmgate/pkg/ussd"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

func decodeFrames(t *testing.T, frames [][]byte) []envelope.Message {
	t.Helper()
	out := make([]envelope.Message, 0, len(frames))
	for _, f := range frames {
		env, err := envelope.Parse(f)
		require.NoError(t, err)
		out = append(out, envelope.Decode(env))
	}
	return out
}

func one(t *testing.T, d *Device, req device.Request) envelope.Message {
	t.Helper()
	msgs := decodeFrames(t, d.handle(req))
	require.Len(t, msgs, 1)
	return msgs[0]
}

// --- Action tests ---

func TestStatus(t *testing.T) {
	d := New(Options{})
	st, ok := one(t, d, device.Request{Action: device.ActionGetStatus}).(envelope.Status)
	require.True(t, ok)
	assert.Equal(t, "READY", st.SimStatus)
	assert.Equal(t, "Not Required", st.SimPinStatus)
	assert.Equal(t, "21", st.SignalQuality)
}

func TestLockedSIM(t *testing.T) {
	d := New(Options{PIN: "1234"})

	st := one(t, d, device.Request{Action: device.ActionGetStatus}).(envelope.Status)
	assert.Equal(t, "Required", st.SimPinStatus)

	a, ok := one(t, d, device.Request{Action: device.ActionSendSMS, Number: "+1", Message: "hi"}).(envelope.Alert)
	require.True(t, ok)
	assert.Equal(t, envelope.TypeError, a.Severity)
	assert.Equal(t, TextNotReady, a.Text)
}

func TestStreamingList(t *testing.T) {
	d := New(Options{Messages: []Message{{Index: 2, Body: "b"}, {Index: 1, Body: "a"}}})
	msgs := decodeFrames(t, d.handle(device.Request{Action: device.ActionGetSMSList}))

	require.Len(t, msgs, 4)
	assert.IsType(t, envelope.SmsListStarted{}, msgs[0])
	assert.Equal(t, 1, msgs[1].(envelope.SmsItem).Index)
	assert.Equal(t, 2, msgs[2].(envelope.SmsItem).Index)
	assert.True(t, msgs[3].(envelope.SmsListFinished).Complete())
}

func TestBatchList(t *testing.T) {
	d := New(Options{Batch: true, Messages: []Message{{Index: 3, Body: "c"}}})
	l, ok := one(t, d, device.Request{Action: device.ActionGetSMSList}).(envelope.SmsList)
	require.True(t, ok)
	require.True(t, l.Available)
	assert.Equal(t, 3, l.Items[0].Index)
}

func TestReadAndDelete(t *testing.T) {
	d := New(Options{Messages: []Message{{Index: 5, Body: "full"}}})

	c := one(t, d, device.Request{Action: device.ActionReadSMS, Index: 5}).(envelope.SmsContent)
	assert.Equal(t, "full", c.Body)
	assert.Equal(t, "REC READ", d.Messages()[0].Status)

	missing := one(t, d, device.Request{Action: device.ActionReadSMS, Index: 9}).(envelope.SmsContent)
	assert.Equal(t, TextNotFound, missing.Error)

	del := one(t, d, device.Request{Action: device.ActionDeleteSMS, Index: 5}).(envelope.SmsDeleted)
	assert.True(t, del.Success)
	assert.Empty(t, d.Messages())

	again := one(t, d, device.Request{Action: device.ActionDeleteSMS, Index: 5}).(envelope.SmsDeleted)
	assert.False(t, again.Success)
}

func TestSendSMS(t *testing.T) {
	d := New(Options{})
	msgs := decodeFrames(t, d.handle(device.Request{Action: device.ActionSendSMS, Number: "+1", Message: "hi"}))

	require.Len(t, msgs, 2)
	assert.IsType(t, envelope.Log{}, msgs[0])
	sent := msgs[1].(envelope.SmsSent)
	assert.True(t, sent.OK())
	assert.Equal(t, TextSentAr, sent.ArMessage)
}

func TestUssdMenu(t *testing.T) {
	d := New(Options{})

	r := one(t, d, device.Request{Action: device.ActionSendUSSD, Code: CodeMenu}).(envelope.UssdResponse)
	assert.Equal(t, ussd.ClassFurtherAction, r.Type)

	r = one(t, d, device.Request{Action: device.ActionSendUSSDReply, Reply: "2"}).(envelope.UssdResponse)
	assert.Equal(t, 1, r.Type)
	assert.Equal(t, TextBundleMenu, r.Message)

	r = one(t, d, device.Request{Action: device.ActionSendUSSDReply, Reply: "1"}).(envelope.UssdResponse)
	assert.Equal(t, 0, r.Type)
	assert.Equal(t, TextSubscribed, r.Message)

	r = one(t, d, device.Request{Action: device.ActionSendUSSDReply, Reply: "1"}).(envelope.UssdResponse)
	assert.Equal(t, 4, r.Type)
}

func TestUssdArabicPayloadDecodes(t *testing.T) {
	d := New(Options{})
	r := one(t, d, device.Request{Action: device.ActionSendUSSD, Code: CodeArabic}).(envelope.UssdResponse)

	text, failed := ussd.DecodeMessage(r.Message, r.DCS)
	assert.False(t, failed)
	assert.Equal(t, arabicGreeting, text)
}

func TestForwarding(t *testing.T) {
	d := New(Options{})
	on := true

	u := one(t, d, device.Request{Action: device.ActionSetCallForwarding, Condition: device.Busy, Activate: &on, Number: "+2"}).(envelope.CallForwardingUpdate)
	assert.True(t, u.Success)

	st := one(t, d, device.Request{Action: device.ActionGetCallForwardingStatus}).(envelope.CallForwardingStatus)
	require.Len(t, st.Rules, len(device.Conditions))
	assert.Equal(t, envelope.ForwardingRule{Condition: "busy", Active: true, Number: "+2"}, st.Rules[1])
}

func TestUnknownAction(t *testing.T) {
	d := New(Options{})
	a := one(t, d, device.Request{Action: "selfDestruct"}).(envelope.Alert)
	assert.Equal(t, envelope.TypeWarning, a.Severity)
}

// --- HTTP tests ---

func TestHTTPRoutes(t *testing.T) {
	d := New(Options{Mode: webapi.ModeAP, PIN: "1234"})
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(srv.Close)

	c := webapi.New(srv.URL, srv.Client())
	ctx := context.Background()

	info, err := c.GetMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, webapi.ModeAP, info.Mode)
	assert.True(t, info.SimPinRequired)

	scan, err := c.ScanWiFi(ctx)
	require.NoError(t, err)
	assert.True(t, scan.Success)
	assert.Len(t, scan.Networks, 3)

	res, err := c.EnterPIN(ctx, "0000")
	require.NoError(t, err)
	assert.False(t, res.Success)

	res, err = c.EnterPIN(ctx, "1234")
	require.NoError(t, err)
	assert.True(t, res.Success)

	info, err = c.GetMode(ctx)
	require.NoError(t, err)
	assert.False(t, info.SimPinRequired)

	res, err = c.SaveConfig(ctx, webapi.Settings{ServerHost: "h", ServerPort: "1", APPassword: "pw"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "h", d.Settings().ServerHost)
	assert.Equal(t, "pw", d.Settings().APPassword)

	res, err = c.SaveWiFi(ctx, "HomeNet", "secret")
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = c.Reboot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Reboots())
}

func TestScanRefusedInStationMode(t *testing.T) {
	srv := httptest.NewServer(New(Options{}).Handler())
	t.Cleanup(srv.Close)

	_, err := webapi.New(srv.URL, srv.Client()).ScanWiFi(context.Background())
	require.ErrorIs(t, err, webapi.ErrStatus)
}

// --- Websocket tests ---

func TestWebSocketRoundTrip(t *testing.T) {
	d := New(Options{})
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):]+WebSocketPath, nil)
	require.NoError(t, err)
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`not json`)))
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"action":"getStatus"}`)))

	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	env, err := envelope.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, envelope.TypeStatus, env.Type)

	assert.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.conns) == 1
	}, time.Second, 5*time.Millisecond)
	go d.Receive(ctx, "+9", "ping")

	_, data, err = c.Read(ctx)
	require.NoError(t, err)
	env, err = envelope.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Decode(env).(envelope.SmsReceived).Index)
}
