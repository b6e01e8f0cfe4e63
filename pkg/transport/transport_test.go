package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/gsmgate/pkg/envelope"
)

// --- Fakes ---

type fakeConn struct {
	in      chan []byte
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	written []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case b := <-c.in:
		return b, nil
	case <-c.done:
		return nil, errors.New("closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	select {
	case <-c.done:
		return errors.New("closed")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

type fakeDialer struct {
	mu    sync.Mutex
	calls int
	conns []*fakeConn
	err   error
	gate  chan struct{} // When set, dials block until it is closed.
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.calls++
	gate, err := d.gate, d.err
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) Last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type fakeTimer struct{ stopped bool }

func (t *fakeTimer) Stop() bool { t.stopped = true; return true }

// recorder captures hook calls and scheduled reconnects in one ordered log.
type recorder struct {
	mu     sync.Mutex
	events []string
	delays []time.Duration
	fns    []func()
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) after(d time.Duration, f func()) Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "schedule")
	r.delays = append(r.delays, d)
	r.fns = append(r.fns, f)
	return &fakeTimer{}
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Scheduled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fns)
}

func (r *recorder) FireLast() {
	r.mu.Lock()
	f := r.fns[len(r.fns)-1]
	r.mu.Unlock()
	f()
}

func newSession(t *testing.T, d *fakeDialer, r *recorder) *Session {
	t.Helper()
	s := New(Options{
		URL:            "ws://device/",
		ReconnectDelay: 5 * time.Second,
		Dialer:         d.Dial,
		AfterFunc:      r.after,
	})
	s.SetHooks(Hooks{
		OnOpen:   func(string) { r.add("open") },
		OnClosed: func(error) { r.add("closed") },
	})
	t.Cleanup(s.Close)
	return s
}

func waitState(t *testing.T, s *Session, state string) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == state }, time.Second, 5*time.Millisecond)
}

// --- Lifecycle tests ---

func TestConnectOpens(t *testing.T) {
	d, r := &fakeDialer{}, &recorder{}
	s := newSession(t, d, r)

	assert.Equal(t, StateClosed, s.State())
	s.Connect()
	waitState(t, s, StateOpen)

	assert.NotEmpty(t, s.ConnID())
	require.Eventually(t, func() bool { return len(r.Events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"open"}, r.Events())
}

func TestConnectIdempotentWhileOpen(t *testing.T) {
	d, r := &fakeDialer{}, &recorder{}
	s := newSession(t, d, r)

	s.Connect()
	waitState(t, s, StateOpen)
	id := s.ConnID()

	s.Connect()
	s.Connect()

	assert.Equal(t, 1, d.Calls())
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, id, s.ConnID())
}

func TestConnectIdempotentWhileConnecting(t *testing.T) {
	gate := make(chan struct{})
	d, r := &fakeDialer{gate: gate}, &recorder{}
	s := newSession(t, d, r)

	s.Connect()
	require.Eventually(t, func() bool { return d.Calls() == 1 }, time.Second, 5*time.Millisecond)
	s.Connect()
	assert.Equal(t, StateConnecting, s.State())

	close(gate)
	waitState(t, s, StateOpen)
	assert.Equal(t, 1, d.Calls())
}

func TestLossResetsThenSchedulesOneReconnect(t *testing.T) {
	d, r := &fakeDialer{}, &recorder{}
	s := newSession(t, d, r)

	s.Connect()
	waitState(t, s, StateOpen)
	d.Last().Close()

	require.Eventually(t, func() bool { return r.Scheduled() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, []string{"open", "closed", "schedule"}, r.Events())
	assert.Equal(t, 5*time.Second, r.delays[0])
	assert.Empty(t, s.ConnID())

	r.FireLast()
	waitState(t, s, StateOpen)
	assert.Equal(t, 2, d.Calls())
	assert.Equal(t, 1, r.Scheduled())
}

func TestDialFailureSchedulesReconnect(t *testing.T) {
	d, r := &fakeDialer{err: errors.New("refused")}, &recorder{}
	s := newSession(t, d, r)

	s.Connect()
	require.Eventually(t, func() bool { return r.Scheduled() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, []string{"closed", "schedule"}, r.Events())
}

func TestCloseStopsReconnecting(t *testing.T) {
	d, r := &fakeDialer{}, &recorder{}
	s := newSession(t, d, r)

	s.Connect()
	waitState(t, s, StateOpen)
	s.Close()

	waitState(t, s, StateClosed)
	assert.Zero(t, r.Scheduled())

	s.Connect()
	assert.Equal(t, 1, d.Calls())
}

// --- Send and receive tests ---

func TestSendRequiresOpen(t *testing.T) {
	d, r := &fakeDialer{}, &recorder{}
	s := newSession(t, d, r)

	assert.False(t, s.Send(context.Background(), map[string]string{"action": "getStatus"}))

	s.Connect()
	waitState(t, s, StateOpen)

	require.True(t, s.Send(context.Background(), map[string]string{"action": "getStatus"}))
	assert.Equal(t, []string{`{"action":"getStatus"}`}, d.Last().Written())
}

func TestSendUnmarshalableFails(t *testing.T) {
	d, r := &fakeDialer{}, &recorder{}
	s := newSession(t, d, r)
	s.Connect()
	waitState(t, s, StateOpen)

	assert.False(t, s.Send(context.Background(), make(chan int)))
	assert.Equal(t, StateOpen, s.State())
}

func TestEnvelopeConsumer(t *testing.T) {
	d, r := &fakeDialer{}, &recorder{}
	s := newSession(t, d, r)

	got := make(chan envelope.Envelope, 1)
	s.OnEnvelope(func(env envelope.Envelope) { got <- env })

	s.Connect()
	waitState(t, s, StateOpen)
	d.Last().in <- []byte(`{"type":"status","data":{"sim_status":"READY"}}`)

	select {
	case env := <-got:
		assert.Equal(t, envelope.TypeStatus, env.Type)
	case <-time.After(time.Second):
		t.Fatal("envelope not delivered")
	}
}

func TestMalformedFrameKeepsState(t *testing.T) {
	d, r := &fakeDialer{}, &recorder{}
	s := newSession(t, d, r)

	type malformed struct {
		raw      string
		artifact bool
	}
	got := make(chan malformed, 2)
	s.SetHooks(Hooks{OnMalformed: func(raw []byte, _ error, artifact bool) {
		got <- malformed{string(raw), artifact}
	}})

	s.Connect()
	waitState(t, s, StateOpen)
	d.Last().in <- []byte(`{"type":`)
	d.Last().in <- []byte(`06330644`)

	first, second := <-got, <-got
	assert.Equal(t, malformed{`{"type":`, false}, first)
	assert.Equal(t, malformed{`06330644`, true}, second)
	assert.Equal(t, StateOpen, s.State())
}

func TestStateHook(t *testing.T) {
	d := &fakeDialer{}
	s := New(Options{URL: "ws://x/", Dialer: d.Dial, AfterFunc: (&recorder{}).after})
	t.Cleanup(s.Close)

	var mu sync.Mutex
	var states []string
	s.SetHooks(Hooks{OnState: func(st string) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, st)
	}})

	s.Connect()
	waitState(t, s, StateOpen)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{StateConnecting, StateOpen}, states)
}

// --- Backoff tests ---

func TestBackoff(t *testing.T) {
	fixed := New(Options{ReconnectDelay: time.Second})
	assert.Equal(t, time.Second, fixed.backoff(1))
	assert.Equal(t, time.Second, fixed.backoff(7))

	capped := New(Options{ReconnectDelay: time.Second, MaxReconnectDelay: 5 * time.Second})
	assert.Equal(t, time.Second, capped.backoff(1))
	assert.Equal(t, 2*time.Second, capped.backoff(2))
	assert.Equal(t, 4*time.Second, capped.backoff(3))
	assert.Equal(t, 5*time.Second, capped.backoff(4))
	assert.Equal(t, 5*time.Second, capped.backoff(20))

	assert.Equal(t, DefaultReconnectDelay, New(Options{}).backoff(1))
}

// --- WebSocket tests ---

func TestWebSocketRoundTrip(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = c.CloseNow() }()

		ctx := r.Context()
		if err := c.Write(ctx, websocket.MessageText, []byte(`{"type":"info","data":"hello"}`)); err != nil {
			return
		}
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		received <- string(data)
		_, _, _ = c.Read(ctx)
	}))
	defer srv.Close()

	s := New(Options{URL: srv.URL, AfterFunc: (&recorder{}).after})
	defer s.Close()

	got := make(chan envelope.Envelope, 1)
	s.OnEnvelope(func(env envelope.Envelope) { got <- env })
	s.Connect()
	waitState(t, s, StateOpen)

	select {
	case env := <-got:
		assert.Equal(t, envelope.TypeInfo, env.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from server")
	}

	require.True(t, s.Send(context.Background(), map[string]string{"action": "getConfig"}))
	select {
	case frame := <-received:
		assert.JSONEq(t, `{"action":"getConfig"}`, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive frame")
	}
}

func TestWebSocketURL(t *testing.T) {
	assert.Equal(t, "ws://192.168.4.1:81/", WebSocketURL("http://192.168.4.1:81/"))
	assert.Equal(t, "wss://h/x", WebSocketURL("https://h/x"))
	assert.Equal(t, "ws://h/", WebSocketURL("ws://h/"))
}

// --- Artifact tests ---

func TestIsArtifact(t *testing.T) {
	tests := []struct {
		raw  []byte
		want bool
	}{
		{[]byte(`{"type":`), false},
		{[]byte(`not json`), false},
		{[]byte(`0633064406270645`), true},
		{[]byte("  00480069\n"), true},
		{[]byte(`abc`), false},
		{[]byte{0xff, 0xfe, '{'}, true},
		{[]byte("{\x00\"type\"}"), true},
		{[]byte("line\nbreak"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsArtifact(tt.raw), "%q", tt.raw)
	}
}
