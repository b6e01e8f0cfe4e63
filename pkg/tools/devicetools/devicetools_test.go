package devicetools

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/simulator"
	"github.com/germanamz/gsmgate/pkg/tools/toolbox"
	"github.com/germanamz/gsmgate/pkg/transport"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

func newTools(t *testing.T, opts simulator.Options) (*toolbox.ToolBox, *simulator.Device) {
	t.Helper()

	dev := simulator.New(opts)
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)

	tr := transport.New(transport.Options{
		URL:            transport.WebSocketURL(srv.URL) + simulator.WebSocketPath,
		ReconnectDelay: 50 * time.Millisecond,
		HTTPClient:     srv.Client(),
	})
	s := session.New(session.Options{Transport: tr, Web: webapi.New(srv.URL, srv.Client())})
	t.Cleanup(s.Close)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Connection == transport.StateOpen && snap.Status.SimStatus != session.Unknown
	}, 3*time.Second, 10*time.Millisecond)

	return New(s, Options{Timeout: 3 * time.Second}).ToolBox(), dev
}

func call(t *testing.T, tb *toolbox.ToolBox, name, args string) toolbox.Result {
	t.Helper()
	return tb.Call(context.Background(), toolbox.Call{ID: "c1", Name: name, Arguments: json.RawMessage(args)})
}

func callOK(t *testing.T, tb *toolbox.ToolBox, name, args string, out any) {
	t.Helper()

	res := call(t, tb, name, args)
	require.False(t, res.IsError, res.Content)
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(res.Content), out))
	}
}

// --- Registration tests ---

func TestToolBoxNames(t *testing.T) {
	tb := New(nil, Options{}).ToolBox()

	names := make([]string, 0)
	for _, tool := range tb.Tools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.True(t, json.Valid(tool.InputSchema), tool.Name)
	}

	assert.ElementsMatch(t, []string{
		"gsm_status", "gsm_refresh_status", "gsm_enter_pin",
		"gsm_list_sms", "gsm_read_sms", "gsm_delete_sms", "gsm_send_sms",
		"gsm_ussd", "gsm_ussd_reply", "gsm_ussd_cancel",
		"gsm_forwarding_status", "gsm_set_forwarding",
		"gsm_segments", "gsm_activity",
	}, names)
}

func TestSegmentsTool(t *testing.T) {
	tb := New(nil, Options{}).ToolBox()

	var out segmentResult
	callOK(t, tb, "gsm_segments", `{"text":"hello"}`, &out)
	assert.Equal(t, 5, out.Chars)
	assert.Equal(t, 1, out.Segments)
	assert.Equal(t, 155, out.Remaining)
}

func TestInvalidArguments(t *testing.T) {
	tb := New(nil, Options{}).ToolBox()

	res := call(t, tb, "gsm_segments", `{"text":1}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "invalid arguments")
}

// --- Device tests ---

func TestStatusTools(t *testing.T) {
	tb, _ := newTools(t, simulator.Options{})

	var st statusResult
	callOK(t, tb, "gsm_refresh_status", "", &st)
	assert.Equal(t, transport.StateOpen, st.Connection)
	assert.Equal(t, "SimNet", st.NetworkOperator)
	assert.Equal(t, "21", st.SignalQuality)

	callOK(t, tb, "gsm_status", "{}", &st)
	assert.Equal(t, "READY", st.SimStatus)
}

func TestSMSTools(t *testing.T) {
	tb, dev := newTools(t, simulator.Options{Messages: []simulator.Message{
		{Index: 1, Sender: "+1", Body: "hello"},
		{Index: 2, Sender: "+2", Body: "world"},
	}})

	var list []messageResult
	callOK(t, tb, "gsm_list_sms", "{}", &list)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Index)

	var msg messageResult
	callOK(t, tb, "gsm_read_sms", `{"index":1}`, &msg)
	assert.Equal(t, "+1", msg.Sender)
	assert.Equal(t, "hello", msg.Body)

	callOK(t, tb, "gsm_delete_sms", `{"index":2}`, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Index)
	assert.Len(t, dev.Messages(), 1)
}

func TestReadMissingSMS(t *testing.T) {
	tb, _ := newTools(t, simulator.Options{})

	res := call(t, tb, "gsm_read_sms", `{"index":9}`)
	assert.True(t, res.IsError)
	assert.Equal(t, simulator.TextNotFound, res.Content)
}

func TestReadInvalidIndex(t *testing.T) {
	tb, _ := newTools(t, simulator.Options{})

	res := call(t, tb, "gsm_read_sms", `{"index":0}`)
	assert.True(t, res.IsError)
}

func TestSendSMSTool(t *testing.T) {
	tb, _ := newTools(t, simulator.Options{})

	var out sendResult
	callOK(t, tb, "gsm_send_sms", `{"number":"+123","message":"hi there"}`, &out)
	assert.True(t, out.Sent)
	assert.Equal(t, simulator.TextSent, out.Message)
	assert.Equal(t, 1, out.Segments)
}

func TestSendSMSLockedSIM(t *testing.T) {
	tb, _ := newTools(t, simulator.Options{PIN: "1234"})

	res := call(t, tb, "gsm_send_sms", `{"number":"+123","message":"hi"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, simulator.TextNotReady)
}

func TestEnterPINTool(t *testing.T) {
	tb, _ := newTools(t, simulator.Options{PIN: "1234"})

	res := call(t, tb, "gsm_enter_pin", `{"pin":"12"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, session.TextPinFormat, res.Content)

	callOK(t, tb, "gsm_enter_pin", `{"pin":"1234"}`, nil)
}

func TestUSSDTools(t *testing.T) {
	tb, _ := newTools(t, simulator.Options{})

	var out ussdResult
	callOK(t, tb, "gsm_ussd", `{"code":"*100#"}`, &out)
	assert.True(t, out.AwaitingReply)
	assert.Equal(t, simulator.TextMainMenu, out.Message)

	callOK(t, tb, "gsm_ussd_reply", `{"reply":"2"}`, &out)
	assert.True(t, out.AwaitingReply)
	assert.Equal(t, simulator.TextBundleMenu, out.Message)

	callOK(t, tb, "gsm_ussd_cancel", "{}", &out)
	assert.False(t, out.AwaitingReply)

	callOK(t, tb, "gsm_ussd", `{"code":"*102#"}`, &out)
	assert.False(t, out.AwaitingReply)
	assert.Equal(t, "rtl", out.Direction)
}

func TestUSSDReplyWithoutSession(t *testing.T) {
	tb, _ := newTools(t, simulator.Options{})

	res := call(t, tb, "gsm_ussd_reply", `{"reply":"1"}`)
	assert.True(t, res.IsError)
}

func TestForwardingTools(t *testing.T) {
	tb, _ := newTools(t, simulator.Options{})

	var rules []ruleResult
	callOK(t, tb, "gsm_forwarding_status", "{}", &rules)
	require.Len(t, rules, 4)
	assert.Equal(t, "unconditional", rules[0].Condition)
	assert.False(t, rules[0].Active)

	callOK(t, tb, "gsm_set_forwarding", `{"condition":"busy","activate":true,"number":"+999"}`, &rules)
	require.Len(t, rules, 4)
	assert.Equal(t, ruleResult{Condition: "busy", Active: true, Number: "+999"}, rules[1])
}

func TestActivityTool(t *testing.T) {
	tb, _ := newTools(t, simulator.Options{})

	callOK(t, tb, "gsm_send_sms", `{"number":"+5","message":"x"}`, nil)

	var lines []string
	callOK(t, tb, "gsm_activity", `{"limit":1}`, &lines)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `AT+CMGS="+5"`)
}
