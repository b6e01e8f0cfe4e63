// Package session is the device-session engine. A Session owns every piece of
// state derived from the gateway (connection and mode, status, USSD exchange,
// inbox, calls, notifications) and mutates it on a single actor goroutine:
// inbound envelopes, transport lifecycle hooks and user actions are all
// queued and applied strictly in order.
//
// Presentation layers read Snapshot and subscribe to the EventBus; they never
// touch the state directly.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/germanamz/gsmgate/pkg/activity"
	"github.com/germanamz/gsmgate/pkg/device"
	"github.com/germanamz/gsmgate/pkg/envelope"
	"github.com/germanamz/gsmgate/pkg/inbox"
	"github.com/germanamz/gsmgate/pkg/notify"
	"github.com/germanamz/gsmgate/pkg/transport"
	"github.com/germanamz/gsmgate/pkg/ussd"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

// Transport is the duplex channel a Session drives. *transport.Session
// implements it.
type Transport interface {
	Connect()
	Close()
	Send(ctx context.Context, payload any) bool
	State() string
	SetHooks(h transport.Hooks)
	OnEnvelope(fn func(envelope.Envelope))
}

// WebAPI is the set of one-shot HTTP actions. *webapi.Client implements it.
type WebAPI interface {
	GetMode(ctx context.Context) (webapi.ModeInfo, error)
	ScanWiFi(ctx context.Context) (webapi.ScanResult, error)
	SaveWiFi(ctx context.Context, ssid, password string) (webapi.Result, error)
	SaveConfig(ctx context.Context, s webapi.Settings) (webapi.Result, error)
	EnterPIN(ctx context.Context, pin string) (webapi.Result, error)
	Reboot(ctx context.Context) (webapi.Result, error)
}

// Options configures a Session.
type Options struct {
	Transport    Transport // Required.
	Web          WebAPI    // Optional; without it Start connects directly.
	InboxVariant inbox.Variant
	// Notification durations; zero uses the notify defaults.
	AlertDuration time.Duration
	InfoDuration  time.Duration
	MaxLogLines   int
	// Language is the initial language; the session assumes none by default.
	Language string
	Logger   *slog.Logger
	Bus      *EventBus
	// Now and AfterFunc drive notification expiry; tests replace them.
	Now       func() time.Time
	AfterFunc notify.AfterFunc
}

// ModeChange is the data of EventMode.
type ModeChange struct {
	Mode        webapi.Mode
	PinRequired bool
}

// Session is the device-session engine. It is safe for concurrent use.
type Session struct {
	actor     *actor
	log       *slog.Logger
	bus       *EventBus
	transport Transport
	web       WebAPI
	device    *device.Client
	notes     *notify.Center
	activity  *activity.Log
	now       func() time.Time

	// Owned by the actor goroutine.
	connection  string
	mode        webapi.Mode
	pinRequired bool
	status      DeviceStatus
	config      ConfigDisplay
	ussd        *ussd.Machine
	inbox       *inbox.Aggregator
	caller      string
	forwarding  map[device.Condition]ForwardingRule
	loading     Loading
	compose     Compose
	wifi        WiFiScan
	language    string
	affordances Affordances
}

// New creates a Session and wires it to the transport's hooks. Call Start to
// begin.
func New(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	bus := opts.Bus
	if bus == nil {
		bus = NewEventBus()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		actor:      newActor(),
		log:        log.With("component", "session"),
		bus:        bus,
		transport:  opts.Transport,
		web:        opts.Web,
		device:     device.New(opts.Transport),
		activity:   activity.New(opts.MaxLogLines),
		now:        now,
		connection: transport.StateClosed,
		status:     UnknownStatus(),
		ussd:       ussd.New(),
		inbox:      inbox.New(opts.InboxVariant),
		forwarding: make(map[device.Condition]ForwardingRule),
		language:   opts.Language,
	}

	s.notes = notify.New(notify.Options{
		AlertDuration: opts.AlertDuration,
		InfoDuration:  opts.InfoDuration,
		Now:           now,
		AfterFunc:     opts.AfterFunc,
		OnChange: func(n notify.Notification, ok bool) {
			var data any
			if ok {
				data = n
			}
			s.publish(EventNotification, data)
		},
	})

	s.refresh()

	s.transport.SetHooks(transport.Hooks{
		OnOpen: func(connID string) {
			s.actor.post(func() { s.opened(connID) })
		},
		OnClosed: func(err error) {
			// Waits so the reset lands before a reconnect is scheduled.
			_ = s.actor.exec(func() { s.closed(err) })
		},
		OnMalformed: func(raw []byte, _ error, artifact bool) {
			s.actor.post(func() { s.malformed(raw, artifact) })
		},
		OnState: func(state string) {
			s.actor.post(func() {
				s.connection = state
				s.publish(EventConnection, state)
			})
		},
	})
	s.transport.OnEnvelope(func(env envelope.Envelope) {
		s.actor.post(func() { s.dispatch(env) })
	})

	return s
}

// Bus returns the session's event bus.
func (s *Session) Bus() *EventBus { return s.bus }

// Start discovers the gateway mode and opens the duplex channel in station
// mode. In AP mode it scans for networks instead. Without a WebAPI it
// connects directly.
func (s *Session) Start(ctx context.Context) error {
	if s.web == nil {
		s.transport.Connect()
		return nil
	}

	info, err := s.web.GetMode(ctx)
	if err != nil {
		s.log.Warn("get mode failed", "error", err)
		_ = s.do(func() error {
			s.notify(TextModeFailed, notify.Error)
			return nil
		})
		return err
	}

	if err := s.do(func() error {
		s.mode = info.Mode
		s.pinRequired = info.SimPinRequired
		s.publish(EventMode, ModeChange{Mode: s.mode, PinRequired: s.pinRequired})
		return nil
	}); err != nil {
		return err
	}

	if info.Mode == webapi.ModeAP {
		return s.ScanWiFi(ctx)
	}

	s.transport.Connect()

	return nil
}

// Close stops the transport and the actor. Pending operations are dropped.
func (s *Session) Close() {
	s.transport.Close()
	s.notes.Dismiss()
	s.actor.stop()
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	if err := s.actor.exec(func() { snap = s.snapshot() }); err != nil {
		return Snapshot{Connection: transport.StateClosed, Status: UnknownStatus()}
	}

	return snap
}

// Activity returns the retained activity lines, oldest first.
func (s *Session) Activity() []activity.Line { return s.activity.Lines() }

// Notification returns the visible notification, if any.
func (s *Session) Notification() (notify.Notification, bool) { return s.notes.Current() }

// DismissNotification clears the visible notification.
func (s *Session) DismissNotification() { s.notes.Dismiss() }

func (s *Session) snapshot() Snapshot {
	view := s.inbox.View()

	snap := Snapshot{
		Connection:  s.connection,
		Mode:        s.mode,
		PinRequired: s.pinRequired,
		Status:      s.status,
		Config:      s.config,
		UssdState:   s.ussd.State(),
		Ussd:        s.ussd.Session(),
		Affordances: s.affordances,
		Inbox:       view,
		Caller:      s.caller,
		Forwarding:  copyForwarding(s.forwarding),
		Loading:     s.loading,
		Compose:     s.compose,
		WiFi:        WiFiScan{Networks: append([]webapi.Network(nil), s.wifi.Networks...), Message: s.wifi.Message},
		Language:    s.language,
		Activity:    s.activity.Lines(),
	}
	snap.Loading.Inbox = view.Loading

	if d, ok := s.inbox.Detail(); ok {
		snap.Detail = &d
	}
	if n, ok := s.notes.Current(); ok {
		snap.Notification = &n
	}

	return snap
}

// do runs fn on the actor and re-evaluates affordances before returning.
func (s *Session) do(fn func() error) error {
	var err error
	if e := s.actor.exec(func() {
		err = fn()
		s.refresh()
	}); e != nil {
		return e
	}

	return err
}

// refresh recomputes control enablement from the USSD machine and the PIN
// gate.
func (s *Session) refresh() {
	ua := s.ussd.Affordances()
	gated := s.pinRequired && s.mode == webapi.ModeSTA
	station := s.mode != webapi.ModeAP && !gated

	next := Affordances{
		InitiateUSSD:    ua.Initiate && station,
		ReplyUSSD:       ua.Reply && station,
		CancelUSSD:      ua.Cancel && station,
		PinEntry:        gated,
		StationControls: station,
		WiFiSetup:       s.mode == webapi.ModeAP,
	}
	if next != s.affordances {
		s.affordances = next
		s.publish(EventUssd, s.ussd.Session())
	}
}

func (s *Session) publish(kind EventKind, data any) {
	s.bus.Publish(Event{Kind: kind, Timestamp: s.now(), Data: data})
}

func (s *Session) notify(text string, sev notify.Severity) {
	s.notes.Show(text, sev)
}

// --- Transport lifecycle ---

func (s *Session) opened(connID string) {
	s.log.Info("device connected", "conn_id", connID)
	s.notify(TextConnected, notify.Success)

	ctx := context.Background()
	if err := s.device.GetStatus(ctx); err != nil {
		s.log.Warn("status request failed", "error", err)
	}
	if err := s.device.GetConfig(ctx); err != nil {
		s.log.Warn("config request failed", "error", err)
	}

	s.refresh()
}

// closed resets everything the device is assumed to have forgotten.
func (s *Session) closed(err error) {
	s.log.Info("device disconnected", "error", err)

	s.connection = transport.StateClosed
	s.status = UnknownStatus()
	s.ussd.Reset()
	s.pinRequired = false
	s.caller = ""
	s.loading = Loading{}
	s.inbox.StopLoading()

	s.notify(TextDisconnected, notify.Error)
	s.publish(EventStatus, s.status)
	s.publish(EventMode, ModeChange{Mode: s.mode})
	s.refresh()
}

// maxEcho bounds how much of a malformed frame is echoed to the user.
const maxEcho = 80

func (s *Session) malformed(raw []byte, artifact bool) {
	if artifact {
		return
	}

	echo := []rune(string(raw))
	if len(echo) > maxEcho {
		echo = append(echo[:maxEcho], []rune("...")...)
	}
	s.notify(fmt.Sprintf("%s: %s", TextInvalidData, string(echo)), notify.Warning)
}
