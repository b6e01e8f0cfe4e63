package devicetools

import (
	"context"
	"encoding/json"

	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/tools/toolbox"
)

type ussdResult struct {
	Message       string `json:"message"`
	AwaitingReply bool   `json:"awaiting_reply"`
	Direction     string `json:"direction"`
	DecodeFailed  bool   `json:"decode_failed,omitempty"`
}

func ussdOf(snap session.Snapshot) ussdResult {
	u := snap.Ussd
	return ussdResult{
		Message:       u.LastMessage,
		AwaitingReply: u.Active,
		Direction:     string(u.Direction),
		DecodeFailed:  u.DecodeFailed,
	}
}

// answered reports whether no USSD request is outstanding any more.
func answered(e session.Event, snap session.Snapshot) bool {
	return e.Kind == session.EventUssd && !snap.Ussd.Pending && !snap.Loading.USSD && !snap.Loading.USSDReply
}

func (t *Tools) ussdTools() []toolbox.Tool {
	return []toolbox.Tool{
		{
			Name:        "gsm_ussd",
			Description: "Dial a USSD code such as *100# and return the network's answer. When awaiting_reply is true, answer with gsm_ussd_reply or end with gsm_ussd_cancel.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"code":{"type":"string"}},"required":["code"]}`),
			Handler:     t.sendUSSD,
		},
		{
			Name:        "gsm_ussd_reply",
			Description: "Answer the network's pending USSD prompt.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"reply":{"type":"string"}},"required":["reply"]}`),
			Handler:     t.replyUSSD,
		},
		{
			Name:        "gsm_ussd_cancel",
			Description: "End the current USSD session.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     t.cancelUSSD,
		},
	}
}

func (t *Tools) sendUSSD(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Code string `json:"code"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}

	w := t.watch()
	defer w.close()

	if err := t.session.SendUSSD(ctx, args.Code); err != nil {
		return "", err
	}

	snap, err := w.until(ctx, answered)
	if err != nil {
		return "", err
	}

	return encode(ussdOf(snap))
}

func (t *Tools) replyUSSD(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Reply string `json:"reply"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}

	w := t.watch()
	defer w.close()

	if err := t.session.SendUSSDReply(ctx, args.Reply); err != nil {
		return "", err
	}

	snap, err := w.until(ctx, answered)
	if err != nil {
		return "", err
	}

	return encode(ussdOf(snap))
}

func (t *Tools) cancelUSSD(ctx context.Context, _ json.RawMessage) (string, error) {
	if err := t.session.CancelUSSD(ctx); err != nil {
		return "", err
	}

	return encode(ussdOf(t.session.Snapshot()))
}
