package simulator

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf16"

	"github.com/germanamz/gsmgate/pkg/device"
	"github.com/germanamz/gsmgate/pkg/envelope"
)

// USSD codes the simulated network knows.
const (
	CodeMenu    = "*100#" // Opens a two-level menu.
	CodeBalance = "*101#" // Answers at once.
	CodeArabic  = "*102#" // Answers with a raw UCS-2 hex payload.
)

// Texts the simulator answers with.
const (
	TextSent       = "SMS sent successfully."
	TextSentAr     = "تم إرسال الرسالة بنجاح."
	TextNotReady   = "SIM not ready"
	TextNotFound   = "SMS not found"
	TextMainMenu   = "1. Balance\n2. Bundles"
	TextBundleMenu = "1. Daily\n2. Weekly"
	TextBalance    = "Your balance is 10.00"
	TextSubscribed = "Bundle activated"
	TextBadOption  = "Invalid option"
	TextUnknownMMI = "UNKNOWN APPLICATION"
	arabicGreeting = "مرحبا بك"
)

// lockedActions need an unlocked SIM.
var lockedActions = map[string]bool{
	device.ActionSendSMS:       true,
	device.ActionSendUSSD:      true,
	device.ActionSendUSSDReply: true,
}

// handle answers one request with the frames to send back to the caller.
func (d *Device) handle(req device.Request) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if lockedActions[req.Action] && !d.unlocked {
		return [][]byte{frame(envelope.TypeError, TextNotReady)}
	}

	switch req.Action {
	case device.ActionGetStatus:
		return [][]byte{d.statusFrame()}
	case device.ActionGetConfig:
		return [][]byte{frame(envelope.TypeConfig, map[string]any{
			"server_host":     d.settings.ServerHost,
			"server_port":     d.settings.ServerPort,
			"server_user":     d.settings.ServerUser,
			"ap_password_set": d.settings.APPassword != "",
			"sim_pin_set":     d.settings.SimPIN != "",
		})}
	case device.ActionGetSMSList:
		return d.list()
	case device.ActionReadSMS:
		m, ok := d.messages[req.Index]
		if !ok {
			return [][]byte{frame(envelope.TypeSmsContent, map[string]any{"error": TextNotFound})}
		}
		m.Status = "REC READ"
		d.messages[m.Index] = m
		return [][]byte{frame(envelope.TypeSmsContent, map[string]any{"index": m.Index, "body": m.Body})}
	case device.ActionDeleteSMS:
		if _, ok := d.messages[req.Index]; !ok {
			return [][]byte{frame(envelope.TypeSmsDeleted, map[string]any{"success": false, "index": req.Index, "message": TextNotFound})}
		}
		delete(d.messages, req.Index)
		return [][]byte{frame(envelope.TypeSmsDeleted, map[string]any{"success": true, "index": req.Index})}
	case device.ActionSendSMS:
		if req.Number == "" || req.Message == "" {
			return [][]byte{frame(envelope.TypeSmsSent, map[string]any{"status": "ERROR", "message": "Missing number or message"})}
		}
		return [][]byte{
			frame(envelope.TypeLog, fmt.Sprintf("AT+CMGS=\"%s\"", req.Number)),
			frame(envelope.TypeSmsSent, map[string]any{"status": "OK", "message": TextSent, "ar_message": TextSentAr}),
		}
	case device.ActionSendUSSD:
		return [][]byte{d.ussd(req.Code)}
	case device.ActionSendUSSDReply:
		return [][]byte{d.ussdReply(req.Reply)}
	case device.ActionCancelUSSD:
		d.menu = nil
		return [][]byte{frame(envelope.TypeLog, "AT+CUSD=2")}
	case device.ActionGetCallForwardingStatus:
		return [][]byte{d.forwardingFrame()}
	case device.ActionSetCallForwarding:
		return [][]byte{d.setForwarding(req)}
	default:
		return [][]byte{frame(envelope.TypeWarning, fmt.Sprintf("Unknown action: %s", req.Action))}
	}
}

func (d *Device) statusFrame() []byte {
	pin := "Not Required"
	switch {
	case d.pin != "" && d.unlocked:
		pin = "OK"
	case d.pin != "":
		pin = "Required"
	}

	sim := "READY"
	if !d.unlocked {
		sim = "SIM PIN"
	}

	return frame(envelope.TypeStatus, map[string]any{
		"wifi_status":      "Connected",
		"ip_address":       "192.168.1.50",
		"sim_status":       sim,
		"signal_quality":   21,
		"network_operator": "SimNet",
		"sim_phone_number": "+15550100",
		"sim_pin_status":   pin,
	})
}

// list streams messages in ascending index order; the client prepends, so
// the newest ends up first.
func (d *Device) list() [][]byte {
	keys := slices.Sorted(maps.Keys(d.messages))
	items := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		m := d.messages[k]
		items = append(items, map[string]any{
			"index":     m.Index,
			"status":    m.Status,
			"sender":    m.Sender,
			"timestamp": m.Timestamp,
			"body":      m.Body,
		})
	}

	if d.batch {
		return [][]byte{frame(envelope.TypeSmsList, items)}
	}

	out := make([][]byte, 0, len(items)+2)
	out = append(out, frame(envelope.TypeSmsListStarted, nil))
	for _, it := range items {
		out = append(out, frame(envelope.TypeSmsItem, it))
	}

	return append(out, frame(envelope.TypeSmsListFinished, map[string]any{"status": "complete"}))
}

func ussdFrame(class int, msg string, dcs int) []byte {
	return frame(envelope.TypeUssdResponse, map[string]any{"type": class, "message": msg, "dcs": dcs})
}

func (d *Device) ussd(code string) []byte {
	d.menu = nil

	switch strings.TrimSpace(code) {
	case CodeMenu:
		d.menu = []string{"main"}
		return ussdFrame(1, TextMainMenu, 15)
	case CodeBalance:
		return ussdFrame(0, TextBalance, 15)
	case CodeArabic:
		return ussdFrame(0, ucs2Hex(arabicGreeting), 72)
	default:
		return ussdFrame(2, TextUnknownMMI, 15)
	}
}

func (d *Device) ussdReply(reply string) []byte {
	if len(d.menu) == 0 {
		return ussdFrame(4, TextBadOption, 15)
	}

	level := d.menu[len(d.menu)-1]
	switch {
	case level == "main" && reply == "1":
		d.menu = nil
		return ussdFrame(0, TextBalance, 15)
	case level == "main" && reply == "2":
		d.menu = append(d.menu, "bundles")
		return ussdFrame(1, TextBundleMenu, 15)
	case level == "bundles" && (reply == "1" || reply == "2"):
		d.menu = nil
		return ussdFrame(0, TextSubscribed, 15)
	default:
		d.menu = nil
		return ussdFrame(0, TextBadOption, 15)
	}
}

func (d *Device) forwardingFrame() []byte {
	rules := make([]map[string]any, 0, len(device.Conditions))
	for _, c := range device.Conditions {
		r := d.rules[string(c)]
		rules = append(rules, map[string]any{"condition": string(c), "active": r.Active, "number": r.Number})
	}

	return frame(envelope.TypeCallForwardingStatus, rules)
}

func (d *Device) setForwarding(req device.Request) []byte {
	cond := string(req.Condition)
	if _, ok := d.rules[cond]; !ok {
		return frame(envelope.TypeCallForwardingUpdate, map[string]any{"condition": cond, "success": false, "message": "Unknown condition"})
	}

	activate := req.Activate != nil && *req.Activate
	r := rule{Active: activate}
	if activate {
		r.Number = req.Number
	}
	d.rules[cond] = r

	return frame(envelope.TypeCallForwardingUpdate, map[string]any{
		"condition": cond,
		"activate":  r.Active,
		"number":    r.Number,
		"success":   true,
	})
}

// ucs2Hex renders s the way a modem reports an undecoded UCS-2 payload.
func ucs2Hex(s string) string {
	units := utf16.Encode([]rune(s))
	raw := make([]byte, 0, len(units)*2)
	for _, u := range units {
		raw = append(raw, byte(u>>8), byte(u))
	}

	return strings.ToUpper(hex.EncodeToString(raw))
}

// decodeRequest parses one inbound action frame.
func decodeRequest(data []byte) (device.Request, error) {
	var req device.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return device.Request{}, fmt.Errorf("simulator: decode request: %w", err)
	}

	return req, nil
}
