// Package devicetools exposes a device session as toolbox tools, so the
// gateway can be driven from an MCP client. Requests that the device answers
// asynchronously wait for the matching session event before returning.
package devicetools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/germanamz/gsmgate/pkg/notify"
	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/tools/toolbox"
)

// DefaultTimeout bounds how long a tool waits for the device to answer.
const DefaultTimeout = 10 * time.Second

// ErrNoResponse is returned when the device does not answer in time.
var ErrNoResponse = errors.New("devicetools: no response from device")

// Options configures the tools.
type Options struct {
	Timeout time.Duration
}

// Tools binds the tool handlers to one session.
type Tools struct {
	session *session.Session
	timeout time.Duration
}

// New creates the tools for s.
func New(s *session.Session, opts Options) *Tools {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Tools{session: s, timeout: timeout}
}

// ToolBox returns a ToolBox holding every gateway tool.
func (t *Tools) ToolBox() *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(t.statusTools()...)
	tb.Register(t.smsTools()...)
	tb.Register(t.ussdTools()...)
	tb.Register(t.forwardingTools()...)
	tb.Register(t.localTools()...)

	return tb
}

// waiter observes session events from before a request is sent until its
// answer arrives.
type waiter struct {
	session *session.Session
	sub     *session.Subscription
	timeout time.Duration
}

func (t *Tools) watch() *waiter {
	return &waiter{session: t.session, sub: t.session.Bus().Subscribe(64), timeout: t.timeout}
}

func (w *waiter) close() { w.session.Bus().Unsubscribe(w.sub) }

// until blocks until done reports true for an event. An error notification
// seen meanwhile fails the wait with the notification text.
func (w *waiter) until(ctx context.Context, done func(e session.Event, snap session.Snapshot) bool) (session.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return session.Snapshot{}, fmt.Errorf("%w: %w", ErrNoResponse, ctx.Err())
		case e, ok := <-w.sub.C:
			if !ok {
				return session.Snapshot{}, ErrNoResponse
			}
			if n, isNote := e.Data.(notify.Notification); isNote && e.Kind == session.EventNotification && n.Severity == notify.Error {
				return session.Snapshot{}, errors.New(n.Text)
			}
			snap := w.session.Snapshot()
			if done(e, snap) {
				return snap, nil
			}
		}
	}
}

func decode(input json.RawMessage, v any) error {
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("devicetools: invalid arguments: %w", err)
	}
	return nil
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("devicetools: encode result: %w", err)
	}
	return string(b), nil
}
