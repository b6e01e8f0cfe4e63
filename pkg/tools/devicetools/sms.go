package devicetools

import (
	"context"
	"encoding/json"

	"github.com/germanamz/gsmgate/pkg/inbox"
	"github.com/germanamz/gsmgate/pkg/segment"
	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/tools/toolbox"
)

type messageResult struct {
	Index     int    `json:"index"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
	Body      string `json:"body"`
	Unread    bool   `json:"unread,omitempty"`
}

type sendResult struct {
	Sent     bool   `json:"sent"`
	Message  string `json:"message,omitempty"`
	Segments int    `json:"segments"`
	Encoding string `json:"encoding"`
}

const indexSchema = `{"type":"object","properties":{"index":{"type":"integer","minimum":1}},"required":["index"]}`

func (t *Tools) smsTools() []toolbox.Tool {
	return []toolbox.Tool{
		{
			Name:        "gsm_list_sms",
			Description: "List the messages stored on the SIM, newest first.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     t.listSMS,
		},
		{
			Name:        "gsm_read_sms",
			Description: "Read the full content of one stored message and mark it read.",
			InputSchema: json.RawMessage(indexSchema),
			Handler:     t.readSMS,
		},
		{
			Name:        "gsm_delete_sms",
			Description: "Delete one stored message. This cannot be undone.",
			InputSchema: json.RawMessage(indexSchema),
			Handler:     t.deleteSMS,
		},
		{
			Name:        "gsm_send_sms",
			Description: "Send an SMS to a phone number.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"number":{"type":"string"},"message":{"type":"string"}},"required":["number","message"]}`),
			Handler:     t.sendSMS,
		},
	}
}

func entriesOf(v inbox.View) []messageResult {
	out := make([]messageResult, 0, len(v.Entries))
	for _, e := range v.Entries {
		out = append(out, messageResult{Index: e.Index, Sender: e.Sender, Timestamp: e.Timestamp, Body: e.Body, Unread: e.Unread})
	}
	return out
}

func (t *Tools) listSMS(ctx context.Context, _ json.RawMessage) (string, error) {
	w := t.watch()
	defer w.close()

	if err := t.session.RefreshInbox(ctx); err != nil {
		return "", err
	}

	snap, err := w.until(ctx, func(e session.Event, snap session.Snapshot) bool {
		return e.Kind == session.EventInbox && !snap.Inbox.Loading
	})
	if err != nil {
		return "", err
	}

	return encode(entriesOf(snap.Inbox))
}

func (t *Tools) readSMS(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Index int `json:"index"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}

	w := t.watch()
	defer w.close()

	if err := t.session.ReadSMS(ctx, args.Index); err != nil {
		return "", err
	}

	snap, err := w.until(ctx, func(e session.Event, snap session.Snapshot) bool {
		return e.Kind == session.EventDetail && snap.Detail != nil && snap.Detail.Index == args.Index
	})
	if err != nil {
		return "", err
	}

	d := snap.Detail
	return encode(messageResult{Index: d.Index, Sender: d.Sender, Timestamp: d.Timestamp, Body: d.Body})
}

// deleteSMS returns once the relist that follows a delete has finished.
func (t *Tools) deleteSMS(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Index int `json:"index"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}

	w := t.watch()
	defer w.close()

	if err := t.session.DeleteSMS(ctx, args.Index); err != nil {
		return "", err
	}

	snap, err := w.until(ctx, func(e session.Event, snap session.Snapshot) bool {
		if e.Kind != session.EventInbox || snap.Inbox.Loading {
			return false
		}
		for _, entry := range snap.Inbox.Entries {
			if entry.Index == args.Index {
				return false
			}
		}
		return true
	})
	if err != nil {
		return "", err
	}

	return encode(entriesOf(snap.Inbox))
}

func (t *Tools) sendSMS(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Number  string `json:"number"`
		Message string `json:"message"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}

	w := t.watch()
	defer w.close()

	if err := t.session.SendSMS(ctx, args.Number, args.Message); err != nil {
		return "", err
	}

	snap, err := w.until(ctx, func(e session.Event, _ session.Snapshot) bool {
		return e.Kind == session.EventSmsSent
	})
	if err != nil {
		return "", err
	}

	seg := segment.Count(args.Message)
	res := sendResult{Sent: true, Segments: seg.Segments, Encoding: seg.Encoding}
	if snap.Notification != nil {
		res.Message = snap.Notification.Text
	}

	return encode(res)
}
