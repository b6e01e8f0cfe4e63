package devicetools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/tools/toolbox"
)

type statusResult struct {
	Connection      string `json:"connection"`
	Mode            string `json:"mode,omitempty"`
	PinRequired     bool   `json:"pin_required"`
	WifiStatus      string `json:"wifi_status"`
	IPAddress       string `json:"ip_address"`
	SimStatus       string `json:"sim_status"`
	SignalQuality   string `json:"signal_quality"`
	NetworkOperator string `json:"network_operator"`
	SimPhoneNumber  string `json:"sim_phone_number"`
	SimPinStatus    string `json:"sim_pin_status"`
	Caller          string `json:"caller,omitempty"`
}

func statusOf(snap session.Snapshot) statusResult {
	st := snap.Status
	return statusResult{
		Connection:      snap.Connection,
		Mode:            string(snap.Mode),
		PinRequired:     snap.PinGated(),
		WifiStatus:      st.WifiStatus,
		IPAddress:       st.IPAddress,
		SimStatus:       st.SimStatus,
		SignalQuality:   st.SignalQuality,
		NetworkOperator: st.NetworkOperator,
		SimPhoneNumber:  st.SimPhoneNumber,
		SimPinStatus:    st.SimPinStatus,
		Caller:          snap.Caller,
	}
}

func (t *Tools) statusTools() []toolbox.Tool {
	return []toolbox.Tool{
		{
			Name:        "gsm_status",
			Description: "Return the last known gateway status: connection, SIM, signal, operator and any current caller. Does not contact the device.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler: func(context.Context, json.RawMessage) (string, error) {
				return encode(statusOf(t.session.Snapshot()))
			},
		},
		{
			Name:        "gsm_refresh_status",
			Description: "Ask the gateway for a fresh status report and return it.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     t.refreshStatus,
		},
		{
			Name:        "gsm_enter_pin",
			Description: "Unlock the SIM with its PIN (4 to 8 digits).",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"pin":{"type":"string"}},"required":["pin"]}`),
			Handler:     t.enterPIN,
		},
	}
}

func (t *Tools) refreshStatus(ctx context.Context, _ json.RawMessage) (string, error) {
	w := t.watch()
	defer w.close()

	if err := t.session.RefreshStatus(ctx); err != nil {
		return "", err
	}

	snap, err := w.until(ctx, func(e session.Event, _ session.Snapshot) bool {
		return e.Kind == session.EventStatus
	})
	if err != nil {
		return "", err
	}

	return encode(statusOf(snap))
}

func (t *Tools) enterPIN(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		PIN string `json:"pin"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}

	if err := t.session.EnterPIN(ctx, args.PIN); err != nil {
		if n, ok := t.session.Notification(); ok {
			return "", errors.New(n.Text)
		}
		return "", err
	}

	return "PIN accepted", nil
}
