// Package transport owns the duplex connection to the gateway: dialing,
// reconnecting after loss, sending action frames and handing parsed inbound
// envelopes to a single consumer.
//
// The connection state is driven by a small state machine:
//
//	closed --dial--> connecting --opened--> open
//	connecting, open --lost--> closed
//
// Every entry into closed runs the OnClosed hook and then schedules exactly
// one reconnect attempt, until Close is called.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/germanamz/gsmgate/pkg/envelope"
)

// Connection states.
const (
	StateClosed     = "closed"
	StateConnecting = "connecting"
	StateOpen       = "open"
)

const (
	eventDial   = "dial"
	eventOpened = "opened"
	eventLost   = "lost"
)

// DefaultReconnectDelay is the delay before a reconnect attempt.
const DefaultReconnectDelay = 5 * time.Second

// Timer is the subset of *time.Timer the session uses.
type Timer interface {
	Stop() bool
}

// Hooks are lifecycle callbacks. They run on the transport's goroutines and
// must not call Close synchronously.
type Hooks struct {
	// OnOpen runs after the connection is open, with its connection ID.
	OnOpen func(connID string)
	// OnClosed runs on every entry into closed, before the reconnect is
	// scheduled.
	OnClosed func(err error)
	// OnMalformed runs for inbound frames that are not valid envelopes.
	// artifact is true when the frame looks like a transcoding artifact.
	OnMalformed func(raw []byte, err error, artifact bool)
	// OnState runs after every state change.
	OnState func(state string)
}

// Options configures a Session.
type Options struct {
	URL string
	// ReconnectDelay is the delay before the first reconnect attempt.
	// Defaults to DefaultReconnectDelay.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps exponential backoff. Zero keeps the delay fixed.
	MaxReconnectDelay time.Duration
	ReadLimit         int64
	HTTPClient        *http.Client
	Header            http.Header
	Logger            *slog.Logger
	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer Dialer
	// AfterFunc schedules reconnects. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
}

// Session is a reconnecting duplex connection. It is safe for concurrent use.
type Session struct {
	opts   Options
	log    *slog.Logger
	dial   Dialer
	after  func(d time.Duration, f func()) Timer
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	fsm      *fsm.FSM
	conn     Conn
	connID   string
	attempt  int
	timer    Timer
	shutdown bool
	hooks    Hooks
	consumer func(envelope.Envelope)

	writeMu sync.Mutex
}

// New creates a closed Session. Call Connect to start it.
func New(opts Options) *Session {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}

	s := &Session{
		opts:  opts,
		log:   opts.Logger,
		dial:  opts.Dialer,
		after: opts.AfterFunc,
		fsm: fsm.NewFSM(
			StateClosed,
			fsm.Events{
				{Name: eventDial, Src: []string{StateClosed}, Dst: StateConnecting},
				{Name: eventOpened, Src: []string{StateConnecting}, Dst: StateOpen},
				{Name: eventLost, Src: []string{StateConnecting, StateOpen}, Dst: StateClosed},
			},
			fsm.Callbacks{},
		),
	}

	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.log = s.log.With("component", "transport", "url", opts.URL)

	if s.dial == nil {
		s.dial = WebSocketDialer(opts.HTTPClient, opts.Header, opts.ReadLimit)
	}
	if s.after == nil {
		s.after = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s
}

// SetHooks replaces the lifecycle hooks.
func (s *Session) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = h
}

// OnEnvelope registers the consumer of inbound envelopes, replacing any
// earlier one.
func (s *Session) OnEnvelope(fn func(envelope.Envelope)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.consumer = fn
}

// State returns the connection state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fsm.Current()
}

// ConnID returns the ID of the current connection, or "" when not open.
func (s *Session) ConnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connID
}

// Connect starts a connection attempt. It is a no-op while connecting or
// open, and after Close.
func (s *Session) Connect() {
	s.mu.Lock()
	if s.shutdown || !s.fsm.Is(StateClosed) {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.fire(eventDial)
	hooks := s.hooks
	s.mu.Unlock()

	notifyState(hooks, StateConnecting)

	go s.run()
}

// Send marshals payload and writes it as one text frame. It reports false
// when the connection is not open or the write fails; a failed write drops
// the connection and the read loop takes it through the close path.
func (s *Session) Send(ctx context.Context, payload any) bool {
	s.mu.Lock()
	conn, open := s.conn, s.fsm.Is(StateOpen)
	s.mu.Unlock()

	if !open || conn == nil {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal outbound frame", "error", err)
		return false
	}

	s.writeMu.Lock()
	err = conn.Write(ctx, data)
	s.writeMu.Unlock()

	if err != nil {
		s.log.Warn("write failed", "error", err)
		_ = conn.Close()
		return false
	}

	s.log.Debug("sent", "frame", string(data))

	return true
}

// Close stops the session for good: the connection is closed and no further
// reconnects are scheduled. Hooks are not run for the final closure.
func (s *Session) Close() {
	s.mu.Lock()
	s.shutdown = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *Session) run() {
	conn, err := s.dial(s.ctx, s.opts.URL)
	if err != nil {
		s.log.Warn("connect failed", "error", err)
		s.lost(err)
		return
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		_ = conn.Close()
		s.lost(context.Canceled)
		return
	}
	s.conn = conn
	s.connID = uuid.NewString()
	s.attempt = 0
	s.fire(eventOpened)
	hooks, connID := s.hooks, s.connID
	s.mu.Unlock()

	log := s.log.With("conn_id", connID)
	log.Info("connected")

	notifyState(hooks, StateOpen)
	if hooks.OnOpen != nil {
		hooks.OnOpen(connID)
	}

	for {
		data, err := conn.Read(s.ctx)
		if err != nil {
			log.Info("connection lost", "error", err)
			_ = conn.Close()
			s.lost(err)
			return
		}

		s.receive(log, data)
	}
}

func (s *Session) receive(log *slog.Logger, data []byte) {
	env, err := envelope.Parse(data)
	if err != nil {
		artifact := IsArtifact(data)
		log.Error("malformed frame", "error", err, "artifact", artifact, "size", len(data))

		s.mu.Lock()
		hook := s.hooks.OnMalformed
		s.mu.Unlock()
		if hook != nil {
			hook(data, err, artifact)
		}
		return
	}

	s.mu.Lock()
	consumer := s.consumer
	s.mu.Unlock()

	if consumer != nil {
		consumer(env)
	}
}

// lost moves the session to closed, runs OnClosed and schedules one
// reconnect. It only ever runs on the goroutine started by Connect.
func (s *Session) lost(cause error) {
	s.mu.Lock()
	s.conn = nil
	s.connID = ""
	s.fire(eventLost)
	shutdown, hooks := s.shutdown, s.hooks
	s.mu.Unlock()

	if shutdown {
		return
	}

	notifyState(hooks, StateClosed)
	if hooks.OnClosed != nil {
		hooks.OnClosed(cause)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return
	}

	s.attempt++
	delay := s.backoff(s.attempt)
	s.log.Info("reconnect scheduled", "delay", delay, "attempt", s.attempt)
	s.timer = s.after(delay, s.reconnect)
}

func (s *Session) reconnect() {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()

	s.Connect()
}

// backoff returns the delay before the given attempt. With a zero cap the
// delay is fixed; otherwise it doubles per attempt up to the cap.
func (s *Session) backoff(attempt int) time.Duration {
	d := s.opts.ReconnectDelay
	if s.opts.MaxReconnectDelay <= 0 {
		return d
	}

	for i := 1; i < attempt && d < s.opts.MaxReconnectDelay; i++ {
		d *= 2
	}

	return min(d, s.opts.MaxReconnectDelay)
}

// fire runs event on the state machine. Callers hold mu.
func (s *Session) fire(event string) {
	err := s.fsm.Event(context.Background(), event)

	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		s.log.Error("invalid transition", "event", event, "state", s.fsm.Current(), "error", err)
		return
	}

	s.log.Debug("state", "event", event, "state", s.fsm.Current())
}

func notifyState(h Hooks, state string) {
	if h.OnState != nil {
		h.OnState(state)
	}
}
