package devicetools

import (
	"context"
	"encoding/json"

	"github.com/germanamz/gsmgate/pkg/device"
	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/tools/toolbox"
)

type ruleResult struct {
	Condition string `json:"condition"`
	Active    bool   `json:"active"`
	Number    string `json:"number,omitempty"`
}

// rulesOf lists the known rules in display order.
func rulesOf(snap session.Snapshot) []ruleResult {
	out := make([]ruleResult, 0, len(device.Conditions))
	for _, c := range device.Conditions {
		r, ok := snap.Forwarding[c]
		if !ok {
			continue
		}
		out = append(out, ruleResult{Condition: string(c), Active: r.Active, Number: r.Number})
	}
	return out
}

func (t *Tools) forwardingTools() []toolbox.Tool {
	return []toolbox.Tool{
		{
			Name:        "gsm_forwarding_status",
			Description: "Query the call forwarding rule of every condition.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     t.forwardingStatus,
		},
		{
			Name:        "gsm_set_forwarding",
			Description: "Enable or disable call forwarding for one condition. A number is required when enabling.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{` +
				`"condition":{"type":"string","enum":["unconditional","busy","no_reply","not_reachable"]},` +
				`"activate":{"type":"boolean"},"number":{"type":"string"}},"required":["condition","activate"]}`),
			Handler: t.setForwarding,
		},
	}
}

func (t *Tools) forwardingStatus(ctx context.Context, _ json.RawMessage) (string, error) {
	w := t.watch()
	defer w.close()

	if err := t.session.QueryForwarding(ctx); err != nil {
		return "", err
	}

	snap, err := w.until(ctx, func(e session.Event, _ session.Snapshot) bool {
		return e.Kind == session.EventForwarding
	})
	if err != nil {
		return "", err
	}

	return encode(rulesOf(snap))
}

func (t *Tools) setForwarding(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Condition string `json:"condition"`
		Activate  bool   `json:"activate"`
		Number    string `json:"number"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}

	w := t.watch()
	defer w.close()

	if err := t.session.SetForwarding(ctx, args.Condition, args.Activate, args.Number); err != nil {
		return "", err
	}

	snap, err := w.until(ctx, func(e session.Event, _ session.Snapshot) bool {
		return e.Kind == session.EventForwarding
	})
	if err != nil {
		return "", err
	}

	return encode(rulesOf(snap))
}
