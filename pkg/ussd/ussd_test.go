package ussd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/gsmgate/pkg/envelope"
)

func response(class int, msg string) envelope.UssdResponse {
	return envelope.UssdResponse{Type: class, Message: msg, DCS: -1, Valid: true}
}

// --- State machine tests ---

func TestNewIsIdle(t *testing.T) {
	m := New()
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, m.Session().Active)
	assert.Equal(t, Affordances{Initiate: true}, m.Affordances())
}

func TestFurtherActionAwaitsReply(t *testing.T) {
	m := New()
	m.Begin(false)

	state := m.Handle(response(1, "1. Balance\n2. Bundles"))
	assert.Equal(t, StateAwaitingReply, state)

	s := m.Session()
	assert.True(t, s.Active)
	assert.False(t, s.Pending)
	assert.Equal(t, NetworkPrompt, s.Origin)
	assert.Equal(t, "1. Balance\n2. Bundles", s.LastMessage)
	assert.Equal(t, Affordances{Reply: true, Cancel: true}, m.Affordances())
}

func TestOtherClassificationsGoIdle(t *testing.T) {
	for _, class := range []int{0, 2, 3, 4, 5, -1} {
		m := New()
		m.Handle(response(1, "menu"))
		require.Equal(t, StateAwaitingReply, m.State())

		assert.Equal(t, StateIdle, m.Handle(response(class, "done")), "class %d", class)
		assert.False(t, m.Session().Active)
		assert.Equal(t, Affordances{Initiate: true}, m.Affordances())
	}
}

func TestRepeatedPromptStaysAwaiting(t *testing.T) {
	m := New()
	m.Handle(response(1, "a"))
	m.Begin(true)
	assert.True(t, m.Session().ReplyPending)

	assert.Equal(t, StateAwaitingReply, m.Handle(response(1, "b")))
	assert.Equal(t, "b", m.Session().LastMessage)
}

func TestCancelAlwaysIdle(t *testing.T) {
	m := New()
	m.Cancel()
	assert.Equal(t, StateIdle, m.State())

	m.Handle(response(1, "menu"))
	m.Cancel()
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, CancelledText, m.Session().LastMessage)
	assert.False(t, m.Session().Active)
}

func TestInvalidResponseForcesIdle(t *testing.T) {
	m := New()
	m.Handle(response(1, "menu"))

	assert.Equal(t, StateIdle, m.Handle(envelope.UssdResponse{Type: 1}))
	assert.Equal(t, InvalidResponseText, m.Session().LastMessage)
}

func TestBeginShowsSending(t *testing.T) {
	m := New()
	m.Begin(false)

	s := m.Session()
	assert.True(t, s.Pending)
	assert.Equal(t, MobileOriginated, s.Origin)
	assert.Equal(t, SendingText, s.LastMessage)
}

func TestReset(t *testing.T) {
	m := New()
	m.Handle(response(1, "menu"))
	m.Reset()

	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, Session{Direction: LTR}, m.Session())
}

// --- Decoding tests ---

func TestDecodeMessagePassThrough(t *testing.T) {
	text, failed := DecodeMessage("Your balance is 5", 15)
	assert.Equal(t, "Your balance is 5", text)
	assert.False(t, failed)

	// Hex-looking text without a UCS-2 scheme is left alone.
	text, _ = DecodeMessage("00410042", -1)
	assert.Equal(t, "00410042", text)
}

func TestDecodeMessageUCS2(t *testing.T) {
	for _, dcs := range []int{72, 8, 136} {
		text, failed := DecodeMessage("0633064406270645", dcs)
		assert.False(t, failed)
		assert.Equal(t, "سلام", text)
	}

	text, _ := DecodeMessage("00480069", 72)
	assert.Equal(t, "Hi", text)
}

func TestDecodeMessageNotMultipleOfFour(t *testing.T) {
	text, failed := DecodeMessage("004100", 72)
	assert.Equal(t, "004100", text)
	assert.False(t, failed)
}

func TestDecodeMessageFailureIsAnnotated(t *testing.T) {
	// A lone high surrogate cannot be decoded.
	text, failed := DecodeMessage("D83D", 8)
	assert.True(t, failed)
	assert.Equal(t, "D83D [decode failed]", text)
}

func TestHandleDecodesUCS2AndSetsDirection(t *testing.T) {
	m := New()
	m.Handle(envelope.UssdResponse{Type: 0, Message: "0633064406270645", DCS: 72, Valid: true})

	s := m.Session()
	assert.Equal(t, "سلام", s.LastMessage)
	assert.Equal(t, RTL, s.Direction)
	assert.False(t, s.DecodeFailed)
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, LTR, DirectionOf("hello"))
	assert.Equal(t, RTL, DirectionOf("رصيدك 5"))
	assert.Equal(t, LTR, DirectionOf(""))
}
