// Package ussd implements the interactive USSD session state machine. A
// session is either idle or awaiting a reply from the user; network answers
// with result classification 1 keep it open, anything else closes it.
package ussd

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/looplab/fsm"
	"github.com/warthog618/sms/encoding/ucs2"

	"github.com/germanamz/gsmgate/pkg/envelope"
)

// Machine states.
const (
	StateIdle          = "idle"
	StateAwaitingReply = "awaiting_reply"
)

// Machine events.
const (
	eventPrompt = "prompt"
	eventSettle = "settle"
	eventCancel = "cancel"
)

// ClassFurtherAction is the result classification the network uses to ask
// for another exchange.
const ClassFurtherAction = 1

// Display texts.
const (
	InvalidResponseText = "Invalid response"
	CancelledText       = "USSD session cancelled."
	SendingText         = "Sending..."
	decodeFailedSuffix  = " [decode failed]"
)

// Origin tells who produced the last message of a session.
type Origin string

const (
	MobileOriginated Origin = "mobile_originated"
	NetworkPrompt    Origin = "network_prompt"
)

// Direction is the text direction to render a message in.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// ucs2Schemes are the data coding scheme values that mark a raw UCS-2 payload.
var ucs2Schemes = map[int]bool{72: true, 8: true, 136: true}

// Session is a snapshot of the USSD exchange.
type Session struct {
	Active       bool
	LastMessage  string
	Origin       Origin
	Direction    Direction
	DecodeFailed bool
	Pending      bool // A request is outstanding.
	ReplyPending bool // The outstanding request is a reply.
}

// Affordances lists which user controls make sense in the current state.
type Affordances struct {
	Initiate bool
	Reply    bool
	Cancel   bool
}

// Machine drives one USSD session. It is not safe for concurrent use; the
// owning session serializes access.
type Machine struct {
	fsm     *fsm.FSM
	session Session
}

// New creates an idle Machine.
func New() *Machine {
	return &Machine{
		fsm: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: eventPrompt, Src: []string{StateIdle, StateAwaitingReply}, Dst: StateAwaitingReply},
				{Name: eventSettle, Src: []string{StateIdle, StateAwaitingReply}, Dst: StateIdle},
				{Name: eventCancel, Src: []string{StateIdle, StateAwaitingReply}, Dst: StateIdle},
			},
			fsm.Callbacks{},
		),
		session: Session{Direction: LTR},
	}
}

// State returns the current machine state.
func (m *Machine) State() string { return m.fsm.Current() }

// Session returns a copy of the session snapshot.
func (m *Machine) Session() Session { return m.session }

// Affordances derives control enablement from the state.
func (m *Machine) Affordances() Affordances {
	if m.fsm.Is(StateAwaitingReply) {
		return Affordances{Reply: true, Cancel: true}
	}
	return Affordances{Initiate: true}
}

// Begin records an outgoing request. reply is true for sendUSSDReply.
func (m *Machine) Begin(reply bool) {
	m.session.Pending = true
	m.session.ReplyPending = reply
	m.session.Origin = MobileOriginated
	if !reply {
		m.session.LastMessage = SendingText
		m.session.Direction = LTR
		m.session.DecodeFailed = false
	}
}

// Handle applies a network response and returns the resulting state.
func (m *Machine) Handle(r envelope.UssdResponse) string {
	m.session.Pending = false
	m.session.ReplyPending = false
	m.session.Origin = NetworkPrompt

	if !r.Valid {
		m.session.LastMessage = InvalidResponseText
		m.session.Direction = LTR
		m.session.DecodeFailed = false
		m.transition(eventSettle)
		return m.State()
	}

	msg, failed := DecodeMessage(r.Message, r.DCS)
	m.session.LastMessage = msg
	m.session.DecodeFailed = failed
	m.session.Direction = DirectionOf(msg)

	if r.Type == ClassFurtherAction {
		m.transition(eventPrompt)
	} else {
		m.transition(eventSettle)
	}

	return m.State()
}

// Cancel forces the machine idle and shows the cancellation text.
func (m *Machine) Cancel() {
	m.session.Pending = false
	m.session.ReplyPending = false
	m.session.LastMessage = CancelledText
	m.session.Direction = LTR
	m.session.DecodeFailed = false
	m.transition(eventCancel)
}

// Reset returns to the initial idle state with no message, as after a
// disconnect.
func (m *Machine) Reset() {
	m.session = Session{Direction: LTR}
	m.transition(eventSettle)
}

// transition fires event. Staying in the same state is not an error here;
// every event is declared from every state, so nothing else can fail.
func (m *Machine) transition(event string) {
	err := m.fsm.Event(context.Background(), event)

	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		m.fsm.SetState(StateIdle)
	}

	m.session.Active = m.fsm.Is(StateAwaitingReply)
}

// DecodeMessage applies the UCS-2 hex fallback: when dcs marks a UCS-2
// payload and msg is an all-hex string of 4-digit units, the units are decoded
// to text. failed is true when the payload looked like UCS-2 but did not
// decode; the original text is then returned with a marker appended.
func DecodeMessage(msg string, dcs int) (text string, failed bool) {
	if !ucs2Schemes[dcs] || !looksLikeUCS2Hex(msg) {
		return msg, false
	}

	raw, err := hex.DecodeString(msg)
	if err != nil {
		return msg + decodeFailedSuffix, true
	}

	runes, err := ucs2.Decode(raw)
	if err != nil {
		return msg + decodeFailedSuffix, true
	}

	return string(runes), false
}

func looksLikeUCS2Hex(s string) bool {
	if len(s) == 0 || len(s)%4 != 0 {
		return false
	}

	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F')
	}) < 0
}

// DirectionOf returns RTL when s contains any Arabic-block code point.
func DirectionOf(s string) Direction {
	for _, r := range s {
		if r >= 0x0600 && r <= 0x06FF {
			return RTL
		}
	}
	return LTR
}
