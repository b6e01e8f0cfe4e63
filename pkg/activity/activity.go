// Package activity keeps a bounded, thread-safe log of device activity lines.
// When the log is full the oldest line is dropped.
package activity

import (
	"strings"
	"sync"
	"time"
)

// DefaultMaxLines is the capacity used when none is given.
const DefaultMaxLines = 150

// Line is one activity entry.
type Line struct {
	At        time.Time // Local receive time.
	Level     string    // Device level, empty when the device sent a bare string.
	Timestamp string    // Device timestamp, if any.
	Text      string
}

// String renders the line as "[timestamp] LEVEL text", omitting empty parts.
// The local receive time is used when the device sent no timestamp.
func (l Line) String() string {
	var b strings.Builder

	ts := l.Timestamp
	if ts == "" && !l.At.IsZero() {
		ts = l.At.Format("15:04:05")
	}
	if ts != "" {
		b.WriteString("[" + ts + "] ")
	}
	if l.Level != "" {
		b.WriteString(strings.ToUpper(l.Level) + " ")
	}
	b.WriteString(l.Text)

	return b.String()
}

// Log is a ring of lines. The zero value is not usable; call New.
type Log struct {
	mu    sync.RWMutex
	lines []Line
	start int
	count int
}

// New creates a Log holding at most maxLines lines. Non-positive values use
// DefaultMaxLines.
func New(maxLines int) *Log {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	return &Log{lines: make([]Line, maxLines)}
}

// Append adds a line, evicting the oldest one when full.
func (l *Log) Append(line Line) {
	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.lines)
	if l.count < capacity {
		l.lines[(l.start+l.count)%capacity] = line
		l.count++
		return
	}

	l.lines[l.start] = line
	l.start = (l.start + 1) % capacity
}

// Lines returns the retained lines, oldest first.
func (l *Log) Lines() []Line {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Line, l.count)
	for i := range out {
		out[i] = l.lines[(l.start+i)%len(l.lines)]
	}

	return out
}

// Len returns the number of retained lines.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.count
}

// Cap returns the maximum number of lines.
func (l *Log) Cap() int { return len(l.lines) }

// Clear drops all lines.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.lines)
	l.start = 0
	l.count = 0
}
