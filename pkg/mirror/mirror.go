// Package mirror republishes session events to an MQTT broker, one topic per
// event kind under a common prefix. State kinds are retained so a late
// subscriber sees the current value; transient kinds are not.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/germanamz/gsmgate/pkg/session"
)

// Publisher sends one payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
}

// retainedKinds hold the latest state rather than a one-off occurrence.
var retainedKinds = map[session.EventKind]bool{
	session.EventConnection: true,
	session.EventMode:       true,
	session.EventStatus:     true,
	session.EventConfig:     true,
	session.EventUssd:       true,
	session.EventInbox:      true,
	session.EventCaller:     true,
	session.EventForwarding: true,
}

// Kinds are the event kinds worth mirroring. Compose and loading changes
// follow keystrokes and stay local.
var Kinds = []session.EventKind{
	session.EventConnection,
	session.EventMode,
	session.EventStatus,
	session.EventConfig,
	session.EventUssd,
	session.EventInbox,
	session.EventDetail,
	session.EventSmsSent,
	session.EventSmsReceived,
	session.EventCaller,
	session.EventForwarding,
	session.EventActivity,
	session.EventNotification,
	session.EventWiFi,
}

// Options configures a Mirror.
type Options struct {
	Prefix string // Topic prefix; defaults to "gsmgate".
	QoS    byte
	Logger *slog.Logger
}

// Message is the JSON payload of a mirrored event.
type Message struct {
	Kind      session.EventKind `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Data      any               `json:"data,omitempty"`
}

// Mirror forwards events from a subscription to a Publisher.
type Mirror struct {
	pub    Publisher
	prefix string
	qos    byte
	log    *slog.Logger
}

// New creates a Mirror.
func New(pub Publisher, opts Options) *Mirror {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	prefix := strings.TrimSuffix(opts.Prefix, "/")
	if prefix == "" {
		prefix = "gsmgate"
	}

	return &Mirror{pub: pub, prefix: prefix, qos: opts.QoS, log: log.With("component", "mirror")}
}

// Topic returns the topic events of kind are published to.
func (m *Mirror) Topic(kind session.EventKind) string {
	return m.prefix + "/" + string(kind)
}

// Run publishes events until ctx is done or the subscription is closed.
// Publish failures are logged and do not stop the mirror.
func (m *Mirror) Run(ctx context.Context, sub *session.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := m.Forward(ctx, e); err != nil {
				m.log.Warn("mirror publish failed", "kind", e.Kind, "error", err)
			}
		}
	}
}

// Forward publishes a single event.
func (m *Mirror) Forward(ctx context.Context, e session.Event) error {
	payload, err := json.Marshal(Message{Kind: e.Kind, Timestamp: e.Timestamp, Data: e.Data})
	if err != nil {
		return fmt.Errorf("mirror: marshal %s: %w", e.Kind, err)
	}

	if err := m.pub.Publish(ctx, m.Topic(e.Kind), m.qos, retainedKinds[e.Kind], payload); err != nil {
		return fmt.Errorf("mirror: publish %s: %w", e.Kind, err)
	}

	return nil
}
