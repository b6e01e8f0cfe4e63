// Package device composes the outbound actions of the gateway's duplex
// channel. Client validates user input before anything leaves the process and
// hands well-formed requests to a Sender, normally the transport session.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Outbound action names.
const (
	ActionGetStatus               = "getStatus"
	ActionGetConfig               = "getConfig"
	ActionGetSMSList              = "getSMSList"
	ActionReadSMS                 = "readSMS"
	ActionDeleteSMS               = "deleteSMS"
	ActionSendSMS                 = "sendSMS"
	ActionSendUSSD                = "sendUSSD"
	ActionSendUSSDReply           = "sendUSSDReply"
	ActionCancelUSSD              = "cancelUSSD"
	ActionGetCallForwardingStatus = "getCallForwardingStatus"
	ActionSetCallForwarding       = "setCallForwarding"
)

// User-input faults. They are returned before any request is sent.
var (
	ErrInvalidIndex     = errors.New("device: index must be positive")
	ErrMissingField     = errors.New("device: required field is empty")
	ErrNoActiveSession  = errors.New("device: no active USSD session")
	ErrSessionActive    = errors.New("device: a USSD session is already awaiting a reply")
	ErrInvalidCondition = errors.New("device: unknown forwarding condition")
	ErrNotConnected     = errors.New("device: not connected")
)

// Condition is a call-forwarding condition.
type Condition string

const (
	Unconditional Condition = "unconditional"
	Busy          Condition = "busy"
	NoReply       Condition = "no_reply"
	NotReachable  Condition = "not_reachable"
)

// Conditions lists every forwarding condition in display order.
var Conditions = []Condition{Unconditional, Busy, NoReply, NotReachable}

// ParseCondition validates s.
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.TrimSpace(s))
	for _, known := range Conditions {
		if c == known {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidCondition, s)
}

// Request is one outbound action frame. Only the fields the action uses are
// serialized.
type Request struct {
	Action    string    `json:"action"`
	Index     int       `json:"index,omitempty"`
	Number    string    `json:"number,omitempty"`
	Message   string    `json:"message,omitempty"`
	Code      string    `json:"code,omitempty"`
	Reply     string    `json:"reply,omitempty"`
	Condition Condition `json:"condition,omitempty"`
	Activate  *bool     `json:"activate,omitempty"`
}

// Sender delivers a payload on the duplex channel. It reports false when the
// channel is not open.
type Sender interface {
	Send(ctx context.Context, payload any) bool
}

// Client exposes the device verbs.
type Client struct {
	sender Sender
}

// New creates a Client sending through s.
func New(s Sender) *Client {
	return &Client{sender: s}
}

func (c *Client) send(ctx context.Context, req Request) error {
	if !c.sender.Send(ctx, req) {
		return fmt.Errorf("%w: %s", ErrNotConnected, req.Action)
	}

	return nil
}

// GetStatus requests a status snapshot.
func (c *Client) GetStatus(ctx context.Context) error {
	return c.send(ctx, Request{Action: ActionGetStatus})
}

// GetConfig requests the gateway configuration.
func (c *Client) GetConfig(ctx context.Context) error {
	return c.send(ctx, Request{Action: ActionGetConfig})
}

// GetSMSList requests an inbox listing.
func (c *Client) GetSMSList(ctx context.Context) error {
	return c.send(ctx, Request{Action: ActionGetSMSList})
}

// ReadSMS requests the full content of message index.
func (c *Client) ReadSMS(ctx context.Context, index int) error {
	if index <= 0 {
		return ErrInvalidIndex
	}

	return c.send(ctx, Request{Action: ActionReadSMS, Index: index})
}

// DeleteSMS deletes message index. Confirmation is the caller's job.
func (c *Client) DeleteSMS(ctx context.Context, index int) error {
	if index <= 0 {
		return ErrInvalidIndex
	}

	return c.send(ctx, Request{Action: ActionDeleteSMS, Index: index})
}

// SendSMS sends message to number. Both are trimmed and must be non-empty.
func (c *Client) SendSMS(ctx context.Context, number, message string) error {
	number = strings.TrimSpace(number)
	message = strings.TrimSpace(message)
	if number == "" || message == "" {
		return ErrMissingField
	}

	return c.send(ctx, Request{Action: ActionSendSMS, Number: number, Message: message})
}

// SendUSSD starts a USSD exchange with code.
func (c *Client) SendUSSD(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrMissingField
	}

	return c.send(ctx, Request{Action: ActionSendUSSD, Code: code})
}

// SendUSSDReply answers a network prompt.
func (c *Client) SendUSSDReply(ctx context.Context, reply string) error {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return ErrMissingField
	}

	return c.send(ctx, Request{Action: ActionSendUSSDReply, Reply: reply})
}

// CancelUSSD ends the current USSD exchange.
func (c *Client) CancelUSSD(ctx context.Context) error {
	return c.send(ctx, Request{Action: ActionCancelUSSD})
}

// GetCallForwardingStatus queries every forwarding condition.
func (c *Client) GetCallForwardingStatus(ctx context.Context) error {
	return c.send(ctx, Request{Action: ActionGetCallForwardingStatus})
}

// SetCallForwarding updates one condition. Activation requires a number.
func (c *Client) SetCallForwarding(ctx context.Context, condition string, activate bool, number string) error {
	cond, err := ParseCondition(condition)
	if err != nil {
		return err
	}

	number = strings.TrimSpace(number)
	if activate && number == "" {
		return ErrMissingField
	}

	return c.send(ctx, Request{
		Action:    ActionSetCallForwarding,
		Condition: cond,
		Activate:  &activate,
		Number:    number,
	})
}
