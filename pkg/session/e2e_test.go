package session_test

import (
	"context"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/simulator"
	"github.com/germanamz/gsmgate/pkg/transport"
	"github.com/germanamz/gsmgate/pkg/ussd"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func startSimulated(t *testing.T, opts simulator.Options) (*session.Session, *simulator.Device) {
	t.Helper()

	dev := simulator.New(opts)
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)

	tr := transport.New(transport.Options{
		URL:            transport.WebSocketURL(srv.URL) + simulator.WebSocketPath,
		ReconnectDelay: 50 * time.Millisecond,
		HTTPClient:     srv.Client(),
	})
	s := session.New(session.Options{
		Transport: tr,
		Web:       webapi.New(srv.URL, srv.Client()),
	})
	t.Cleanup(s.Close)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Connection == transport.StateOpen && snap.Status.SimStatus != session.Unknown
	}, waitFor, tick)

	return s, dev
}

func TestEndToEndInbox(t *testing.T) {
	s, dev := startSimulated(t, simulator.Options{Messages: []simulator.Message{
		{Index: 1, Sender: "+1", Body: "hello"},
		{Index: 5, Sender: "+5", Body: "bye"},
	}})
	ctx := context.Background()

	require.NoError(t, s.RefreshInbox(ctx))
	require.Eventually(t, func() bool {
		v := s.Snapshot().Inbox
		return !v.Loading && len(v.Entries) == 2
	}, waitFor, tick)
	assert.Equal(t, 5, s.Snapshot().Inbox.Entries[0].Index)

	require.NoError(t, s.ReadSMS(ctx, 5))
	require.Eventually(t, func() bool { return s.Snapshot().Detail != nil }, waitFor, tick)
	assert.Equal(t, "+5", s.Snapshot().Detail.Sender)

	require.NoError(t, s.DeleteSMS(ctx, 5))
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.Inbox.Loading && len(snap.Inbox.Entries) == 1 && snap.Detail == nil
	}, waitFor, tick)
	assert.Equal(t, 1, s.Snapshot().Inbox.Entries[0].Index)
	assert.Len(t, dev.Messages(), 1)
}

func TestEndToEndUssdMenu(t *testing.T) {
	s, _ := startSimulated(t, simulator.Options{})
	ctx := context.Background()

	require.NoError(t, s.SendUSSD(ctx, simulator.CodeMenu))
	require.Eventually(t, func() bool { return s.Snapshot().UssdState == ussd.StateAwaitingReply }, waitFor, tick)
	assert.Equal(t, simulator.TextMainMenu, s.Snapshot().Ussd.LastMessage)

	require.NoError(t, s.SendUSSDReply(ctx, "1"))
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.UssdState == ussd.StateIdle && snap.Ussd.LastMessage == simulator.TextBalance
	}, waitFor, tick)
	assert.True(t, s.Snapshot().Affordances.InitiateUSSD)
}

func TestEndToEndPinUnlock(t *testing.T) {
	s, _ := startSimulated(t, simulator.Options{PIN: "4321"})

	snap := s.Snapshot()
	require.True(t, snap.PinGated())
	assert.False(t, snap.Affordances.StationControls)

	require.NoError(t, s.EnterPIN(context.Background(), "4321"))
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.PinGated() && snap.Status.SimPinStatus == "OK"
	}, waitFor, tick)
	assert.True(t, s.Snapshot().Affordances.StationControls)
}

func TestEndToEndCalls(t *testing.T) {
	s, dev := startSimulated(t, simulator.Options{})
	ctx := context.Background()

	dev.Ring(ctx, "+777")
	require.Eventually(t, func() bool { return s.Snapshot().Caller == "+777" }, waitFor, tick)

	dev.HangUp(ctx, "NO CARRIER")
	require.Eventually(t, func() bool { return s.Snapshot().Caller == "" }, waitFor, tick)
}

func TestEndToEndIncomingSMS(t *testing.T) {
	s, dev := startSimulated(t, simulator.Options{})

	index := dev.Receive(context.Background(), "+3", "ping")
	require.Eventually(t, func() bool {
		n := s.Snapshot().Notification
		return n != nil && n.Text == "New SMS (#"+strconv.Itoa(index)+")"
	}, waitFor, tick)
}

func TestEndToEndAccessPointMode(t *testing.T) {
	dev := simulator.New(simulator.Options{Mode: webapi.ModeAP})
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)

	tr := transport.New(transport.Options{URL: transport.WebSocketURL(srv.URL) + simulator.WebSocketPath})
	s := session.New(session.Options{Transport: tr, Web: webapi.New(srv.URL, srv.Client())})
	t.Cleanup(s.Close)

	require.NoError(t, s.Start(context.Background()))
	snap := s.Snapshot()

	assert.Equal(t, transport.StateClosed, snap.Connection)
	assert.True(t, snap.Affordances.WiFiSetup)
	require.Len(t, snap.WiFi.Networks, 3)
	assert.Equal(t, 4, snap.WiFi.Networks[0].Bars())
}
