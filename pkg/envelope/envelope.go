// Package envelope models the inbound frames of the gateway's duplex channel.
// Every frame is a JSON object {"type": ..., "data": ...}; the shape of data is
// implied by type. Decode turns the untyped pair into one concrete Message per
// known type, with Unknown as the explicit default.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound frame types.
const (
	TypeStatus               = "status"
	TypeConfig               = "config"
	TypeUssdResponse         = "ussd_response"
	TypeSmsSent              = "sms_sent"
	TypeSmsReceived          = "sms_received_indication"
	TypeSmsListStarted       = "sms_list_started"
	TypeSmsItem              = "sms_item"
	TypeSmsListFinished      = "sms_list_finished"
	TypeSmsList              = "sms_list"
	TypeSmsContent           = "sms_content"
	TypeSmsDeleted           = "sms_deleted"
	TypeCallerID             = "caller_id"
	TypeCallIncoming         = "call_incoming"
	TypeCallStatus           = "call_status"
	TypeCallForwardingStatus = "call_forwarding_status"
	TypeCallForwardingUpdate = "call_forwarding_update_result"
	TypeLog                  = "log"
	TypeError                = "error"
	TypeWarning              = "warning"
	TypeInfo                 = "info"
)

// ErrMissingType is returned by Parse for frames without a type field.
var ErrMissingType = errors.New("envelope: missing type")

// Envelope is one inbound frame with its payload still undecoded.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Parse decodes the outer frame. Errors mean the frame is malformed; the
// payload itself is only inspected by Decode.
func Parse(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("envelope: parse: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}

	return env, nil
}

// New builds an Envelope by marshaling data. Used by tests and the simulator.
func New(typ string, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Type: typ}, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: marshal %s: %w", typ, err)
	}

	return Envelope{Type: typ, Data: raw}, nil
}

// isObject reports whether raw is a JSON object.
func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// isArray reports whether raw is a JSON array.
func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// text returns raw as a string: JSON strings are unquoted, everything else is
// returned verbatim. Null or empty yields "".
func text(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}

	return string(trimmed)
}
