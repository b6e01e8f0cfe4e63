// Package notify provides a single-slot, auto-expiring notification center.
// A new notification always replaces the visible one and restarts the expiry
// timer, so only the newest message is ever observable.
package notify

import (
	"sync"
	"time"
)

// Severity classifies a notification.
type Severity string

const (
	Success Severity = "success"
	Info    Severity = "info"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Default display durations.
const (
	DefaultAlertDuration = 6 * time.Second // Warning and Error.
	DefaultInfoDuration  = 4 * time.Second // Success and Info.
)

// Notification is a user-facing message.
type Notification struct {
	Text      string
	Severity  Severity
	ExpiresAt time.Time
}

// Timer is the subset of *time.Timer the center needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. It matches time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// Options configures a Center. Zero values fall back to defaults.
type Options struct {
	AlertDuration time.Duration
	InfoDuration  time.Duration
	Now           func() time.Time
	AfterFunc     AfterFunc
	// OnChange is called after every show and expiry with the current slot.
	// ok is false when the slot became empty. It runs without the center lock.
	OnChange func(n Notification, ok bool)
}

// Center holds at most one notification. It is safe for concurrent use.
type Center struct {
	opts Options

	mu         sync.Mutex
	current    Notification
	visible    bool
	generation uint64
	timer      Timer
}

// New creates a Center.
func New(opts Options) *Center {
	if opts.AlertDuration <= 0 {
		opts.AlertDuration = DefaultAlertDuration
	}
	if opts.InfoDuration <= 0 {
		opts.InfoDuration = DefaultInfoDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}

	return &Center{opts: opts}
}

// Duration returns how long a notification of severity s stays visible.
func (c *Center) Duration(s Severity) time.Duration {
	if s == Warning || s == Error {
		return c.opts.AlertDuration
	}
	return c.opts.InfoDuration
}

// Show replaces the current notification and restarts expiry timing.
func (c *Center) Show(text string, s Severity) Notification {
	if s == "" {
		s = Info
	}
	d := c.Duration(s)

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.generation++
	gen := c.generation
	n := Notification{Text: text, Severity: s, ExpiresAt: c.opts.Now().Add(d)}
	c.current = n
	c.visible = true
	c.timer = c.opts.AfterFunc(d, func() { c.expire(gen) })
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(n, true)
	}

	return n
}

// expire clears the slot if gen is still the newest notification. Timers that
// lost a Stop race land here with an old generation and do nothing.
func (c *Center) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || !c.visible {
		c.mu.Unlock()
		return
	}
	c.visible = false
	c.current = Notification{}
	c.timer = nil
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(Notification{}, false)
	}
}

// Dismiss clears the current notification immediately.
func (c *Center) Dismiss() {
	c.mu.Lock()
	gen := c.generation
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	c.expire(gen)
}

// Current returns the visible notification, if any.
func (c *Center) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current, c.visible
}
