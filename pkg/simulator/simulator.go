// Package simulator is an in-process fake of the GSM gateway: the one-shot
// HTTP routes and the duplex websocket channel, backed by an in-memory SIM
// with a message store, a scripted USSD menu and call-forwarding rules. It
// serves tests and `gsmctl simulate`.
package simulator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/coder/websocket"

	"github.com/germanamz/gsmgate/pkg/envelope"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

// Message is one stored SMS.
type Message struct {
	Index     int
	Status    string // "REC READ" or "REC UNREAD".
	Sender    string
	Timestamp string
	Body      string
}

// Options configures a Device.
type Options struct {
	Mode     webapi.Mode // Defaults to STA.
	PIN      string      // Non-empty locks the SIM until the PIN is entered.
	Messages []Message
	// Batch answers getSMSList with one sms_list frame instead of a stream.
	Batch    bool
	Networks []webapi.Network
	Logger   *slog.Logger
}

// Settings are the values stored by /saveconfig.
type Settings struct {
	ServerHost     string
	ServerPort     string
	ServerUser     string
	ServerPassword string
	APPassword     string
	SimPIN         string
}

type rule struct {
	Active bool
	Number string
}

// Device is a simulated gateway. It is safe for concurrent use.
type Device struct {
	log *slog.Logger

	mu        sync.Mutex
	mode      webapi.Mode
	pin       string
	unlocked  bool
	batch     bool
	networks  []webapi.Network
	messages  map[int]Message
	nextIndex int
	menu      []string // USSD menu path; empty when no session.
	rules     map[string]rule
	settings  Settings
	wifiSSID  string
	reboots   int
	conns     map[*websocket.Conn]struct{}
}

// New creates a Device.
func New(opts Options) *Device {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	mode := opts.Mode
	if mode == "" {
		mode = webapi.ModeSTA
	}

	d := &Device{
		log:      log.With("component", "simulator"),
		mode:     mode,
		pin:      opts.PIN,
		unlocked: opts.PIN == "",
		batch:    opts.Batch,
		networks: opts.Networks,
		messages: make(map[int]Message),
		rules: map[string]rule{
			"unconditional": {},
			"busy":          {},
			"no_reply":      {},
			"not_reachable": {},
		},
		settings: Settings{ServerHost: "sms.example.net", ServerPort: "1883", ServerUser: "gateway"},
		conns:    make(map[*websocket.Conn]struct{}),
	}

	for _, m := range opts.Messages {
		d.store(m)
	}
	if d.networks == nil {
		d.networks = []webapi.Network{
			{SSID: "HomeNet", RSSI: -52, Secure: true},
			{SSID: "Cafe", RSSI: -74},
			{SSID: "Far Away", RSSI: -88, Secure: true},
		}
	}

	return d
}

func (d *Device) store(m Message) {
	if m.Index <= 0 {
		m.Index = d.nextIndex + 1
	}
	if m.Status == "" {
		m.Status = "REC UNREAD"
	}
	d.messages[m.Index] = m
	d.nextIndex = max(d.nextIndex, m.Index)
}

// Messages returns the stored messages ordered by index.
func (d *Device) Messages() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := slices.Sorted(maps.Keys(d.messages))
	out := make([]Message, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.messages[k])
	}

	return out
}

// Settings returns the stored gateway settings.
func (d *Device) Settings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// Reboots returns how many reboots were requested.
func (d *Device) Reboots() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reboots
}

// Receive stores an incoming SMS and announces it to every client.
func (d *Device) Receive(ctx context.Context, sender, body string) int {
	d.mu.Lock()
	m := Message{Sender: sender, Body: body, Timestamp: "26/10/14,12:00:00+00"}
	d.store(m)
	index := d.nextIndex
	d.mu.Unlock()

	d.Broadcast(ctx, frame(envelope.TypeSmsReceived, map[string]any{"index": index}))

	return index
}

// Ring announces an incoming call from number.
func (d *Device) Ring(ctx context.Context, number string) {
	d.Broadcast(ctx,
		frame(envelope.TypeCallIncoming, "RING"),
		frame(envelope.TypeCallerID, map[string]any{"caller_id": number}),
	)
}

// HangUp announces the end of a call with code, for example NO CARRIER.
func (d *Device) HangUp(ctx context.Context, code string) {
	d.Broadcast(ctx, frame(envelope.TypeCallStatus, code))
}

// Alert broadcasts an error, warning or info envelope.
func (d *Device) Alert(ctx context.Context, severity, text string) {
	d.Broadcast(ctx, frame(severity, text))
}

// Broadcast writes raw frames to every connected client.
func (d *Device) Broadcast(ctx context.Context, frames ...[]byte) {
	d.mu.Lock()
	conns := slices.Collect(maps.Keys(d.conns))
	d.mu.Unlock()

	for _, c := range conns {
		for _, f := range frames {
			if err := c.Write(ctx, websocket.MessageText, f); err != nil {
				d.log.Debug("broadcast failed", "error", err)
				break
			}
		}
	}
}

// frame encodes one outbound envelope. Payloads are all plain values, so
// marshaling cannot fail.
func frame(typ string, data any) []byte {
	env, err := envelope.New(typ, data)
	if err != nil {
		panic(err)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}

	return raw
}
