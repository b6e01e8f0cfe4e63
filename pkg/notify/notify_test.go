package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock records scheduled timers so tests can fire them by hand,
// including after they were stopped.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func newTestCenter(onChange func(Notification, bool)) (*Center, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(Options{Now: clk.Now, AfterFunc: clk.AfterFunc, OnChange: onChange})
	return c, clk
}

func TestShowSetsSlot(t *testing.T) {
	c, clk := newTestCenter(nil)

	n := c.Show("hello", Success)
	assert.Equal(t, "hello", n.Text)
	assert.Equal(t, clk.now.Add(4*time.Second), n.ExpiresAt)

	got, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, n, got)
}

func TestDurationsBySeverity(t *testing.T) {
	c, clk := newTestCenter(nil)

	c.Show("a", Error)
	c.Show("b", Warning)
	c.Show("c", Info)
	c.Show("d", Success)

	require.Len(t, clk.timers, 4)
	assert.Equal(t, 6*time.Second, clk.timers[0].d)
	assert.Equal(t, 6*time.Second, clk.timers[1].d)
	assert.Equal(t, 4*time.Second, clk.timers[2].d)
	assert.Equal(t, 4*time.Second, clk.timers[3].d)
}

func TestExpiryClearsSlot(t *testing.T) {
	c, clk := newTestCenter(nil)

	c.Show("bye", Info)
	clk.timers[0].f()

	_, ok := c.Current()
	assert.False(t, ok)
}

func TestReplacementStopsPriorTimer(t *testing.T) {
	c, clk := newTestCenter(nil)

	c.Show("first", Error)
	c.Show("second", Info)

	assert.True(t, clk.timers[0].stopped)
	assert.False(t, clk.timers[1].stopped)
}

func TestStaleTimerDoesNotClearNewer(t *testing.T) {
	c, clk := newTestCenter(nil)

	c.Show("first", Error)
	c.Show("second", Success)

	// The first timer fires anyway, as if Stop lost the race.
	clk.timers[0].f()

	got, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "second", got.Text)
	assert.Equal(t, Success, got.Severity)

	clk.timers[1].f()
	_, ok = c.Current()
	assert.False(t, ok)
}

func TestOnChange(t *testing.T) {
	var seen []bool
	c, clk := newTestCenter(func(_ Notification, ok bool) { seen = append(seen, ok) })

	c.Show("x", Info)
	clk.timers[0].f()

	assert.Equal(t, []bool{true, false}, seen)
}

func TestDismiss(t *testing.T) {
	c, clk := newTestCenter(nil)

	c.Show("x", Warning)
	c.Dismiss()

	_, ok := c.Current()
	assert.False(t, ok)
	assert.True(t, clk.timers[0].stopped)
}

func TestEmptySeverityDefaultsToInfo(t *testing.T) {
	c, _ := newTestCenter(nil)

	n := c.Show("x", "")
	assert.Equal(t, Info, n.Severity)
}

func TestRealTimerExpires(t *testing.T) {
	c := New(Options{InfoDuration: 10 * time.Millisecond})
	c.Show("tick", Info)

	assert.Eventually(t, func() bool {
		_, ok := c.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}
