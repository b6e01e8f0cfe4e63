package devicetools

import (
	"context"
	"encoding/json"

	"github.com/germanamz/gsmgate/pkg/segment"
	"github.com/germanamz/gsmgate/pkg/tools/toolbox"
)

type segmentResult struct {
	Chars     int    `json:"chars"`
	Segments  int    `json:"segments"`
	Encoding  string `json:"encoding"`
	Remaining int    `json:"remaining"`
}

func (t *Tools) localTools() []toolbox.Tool {
	return []toolbox.Tool{
		{
			Name:        "gsm_segments",
			Description: "Count how many SMS segments a message body needs and which encoding it uses.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
			Handler: func(_ context.Context, input json.RawMessage) (string, error) {
				var args struct {
					Text string `json:"text"`
				}
				if err := decode(input, &args); err != nil {
					return "", err
				}

				r := segment.Count(args.Text)
				return encode(segmentResult{Chars: r.Chars, Segments: r.Segments, Encoding: r.Encoding, Remaining: r.Remaining()})
			},
		},
		{
			Name:        "gsm_activity",
			Description: "Return the most recent device log lines, oldest first.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1}}}`),
			Handler: func(_ context.Context, input json.RawMessage) (string, error) {
				var args struct {
					Limit int `json:"limit"`
				}
				if err := decode(input, &args); err != nil {
					return "", err
				}

				lines := t.session.Activity()
				if args.Limit > 0 && len(lines) > args.Limit {
					lines = lines[len(lines)-args.Limit:]
				}

				out := make([]string, 0, len(lines))
				for _, l := range lines {
					out = append(out, l.String())
				}
				return encode(out)
			},
		},
	}
}
