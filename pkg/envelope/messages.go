package envelope

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Message is the decoded payload of one Envelope. The set of implementations
// is closed; switch on the concrete type and treat Unknown as the default arm.
type Message interface {
	// Kind returns the envelope type the message was decoded from.
	Kind() string
	sealed()
}

// Status is a device status snapshot. Missing fields are empty strings.
type Status struct {
	WifiStatus      string `json:"wifi_status"`
	IPAddress       string `json:"ip_address"`
	SimStatus       string `json:"sim_status"`
	SignalQuality   string `json:"signal_quality"`
	NetworkOperator string `json:"network_operator"`
	SimPhoneNumber  string `json:"sim_phone_number"`
	SimPinStatus    string `json:"sim_pin_status"`
	Valid           bool   `json:"-"`
}

// Config is the gateway configuration as reported by the device. Secrets are
// never sent; only whether they are set.
type Config struct {
	ServerHost    string
	ServerPort    string
	ServerUser    string
	APPasswordSet bool
	SimPinSet     bool
	Valid         bool
}

// UssdResponse is one network answer in a USSD exchange.
type UssdResponse struct {
	Type    int    // Result classification; 1 means the network wants a reply.
	Message string // Display text, normally already decoded by the device.
	DCS     int    // Data coding scheme, -1 when absent.
	Valid   bool   // False when data was not an object.
}

// SmsSent reports the outcome of a sendSMS action.
type SmsSent struct {
	Status    string
	Message   string
	ArMessage string
}

// OK reports whether the device accepted the message.
func (m SmsSent) OK() bool { return m.Status == "OK" }

// SmsReceived signals that a new message landed in device storage.
type SmsReceived struct {
	Index int
}

// SmsListStarted opens a streamed inbox listing.
type SmsListStarted struct{}

// SmsItem is one message summary, streamed or part of a batch listing.
type SmsItem struct {
	Index     int
	Status    string
	Sender    string
	Timestamp string
	Body      string
	BodyHex   string
	Valid     bool // False when the item carries no usable index.
}

// Unread reports whether the device storage status marks the message unread.
func (m SmsItem) Unread() bool { return strings.Contains(m.Status, "UNREAD") }

// SmsListFinished closes a streamed inbox listing.
type SmsListFinished struct {
	Status string // "complete", "error" or "timeout".
}

// Complete reports whether the listing ended without a device-side fault.
func (m SmsListFinished) Complete() bool {
	return m.Status == "" || m.Status == "complete"
}

// SmsList is a batch inbox listing. Available is false when the payload did
// not carry a list, which current firmware does not populate yet.
type SmsList struct {
	Items     []SmsItem
	Available bool
}

// SmsContent is the full body of one stored message.
type SmsContent struct {
	Index   int
	Body    string
	BodyHex string
	Error   string
	Valid   bool
}

// SmsDeleted reports the outcome of a deleteSMS action.
type SmsDeleted struct {
	Index   int
	Success bool
	Message string
}

// CallerID carries the calling line identity of an incoming call.
type CallerID struct {
	Number string
}

// CallIncoming is a ring indication. Text is "RING" or a caller string.
type CallIncoming struct {
	Text string
}

// CallStatus carries a call progress code such as "NO CARRIER".
type CallStatus struct {
	Code string
}

// ForwardingRule is the forwarding setting of one condition.
type ForwardingRule struct {
	Condition string `json:"condition"`
	Active    bool   `json:"active"`
	Number    string `json:"number"`
}

// CallForwardingStatus is the batch answer to getCallForwardingStatus.
type CallForwardingStatus struct {
	Rules []ForwardingRule
	Valid bool
}

// CallForwardingUpdate is the answer to setCallForwarding.
type CallForwardingUpdate struct {
	Rule    ForwardingRule
	Success bool
	Message string
}

// Log is one device activity line.
type Log struct {
	Level     string
	Message   string
	Timestamp string
}

// Alert is an error, warning or info frame meant for the user.
type Alert struct {
	Severity string // TypeError, TypeWarning or TypeInfo.
	Text     string
}

// Unknown is any frame whose type is not recognized.
type Unknown struct {
	Type string
}

func (Status) Kind() string               { return TypeStatus }
func (Config) Kind() string               { return TypeConfig }
func (UssdResponse) Kind() string         { return TypeUssdResponse }
func (SmsSent) Kind() string              { return TypeSmsSent }
func (SmsReceived) Kind() string          { return TypeSmsReceived }
func (SmsListStarted) Kind() string       { return TypeSmsListStarted }
func (SmsItem) Kind() string              { return TypeSmsItem }
func (SmsListFinished) Kind() string      { return TypeSmsListFinished }
func (SmsList) Kind() string              { return TypeSmsList }
func (SmsContent) Kind() string           { return TypeSmsContent }
func (SmsDeleted) Kind() string           { return TypeSmsDeleted }
func (CallerID) Kind() string             { return TypeCallerID }
func (CallIncoming) Kind() string         { return TypeCallIncoming }
func (CallStatus) Kind() string           { return TypeCallStatus }
func (CallForwardingStatus) Kind() string { return TypeCallForwardingStatus }
func (CallForwardingUpdate) Kind() string { return TypeCallForwardingUpdate }
func (Log) Kind() string                  { return TypeLog }
func (m Alert) Kind() string              { return m.Severity }
func (m Unknown) Kind() string            { return m.Type }

func (Status) sealed()               {}
func (Config) sealed()               {}
func (UssdResponse) sealed()         {}
func (SmsSent) sealed()              {}
func (SmsReceived) sealed()          {}
func (SmsListStarted) sealed()       {}
func (SmsItem) sealed()              {}
func (SmsListFinished) sealed()      {}
func (SmsList) sealed()              {}
func (SmsContent) sealed()           {}
func (SmsDeleted) sealed()           {}
func (CallerID) sealed()             {}
func (CallIncoming) sealed()         {}
func (CallStatus) sealed()           {}
func (CallForwardingStatus) sealed() {}
func (CallForwardingUpdate) sealed() {}
func (Log) sealed()                  {}
func (Alert) sealed()                {}
func (Unknown) sealed()              {}

// Decode maps env to its Message. It never fails: payloads of the wrong
// shape decode to a zero value with Valid (or Available) left false, so the
// router can substitute a safe rendering.
func Decode(env Envelope) Message {
	switch env.Type {
	case TypeStatus:
		return decodeStatus(env.Data)
	case TypeConfig:
		return decodeConfig(env.Data)
	case TypeUssdResponse:
		return decodeUssd(env.Data)
	case TypeSmsSent:
		var p struct {
			Status    string `json:"status"`
			Message   string `json:"message"`
			ArMessage string `json:"ar_message"`
		}
		if isObject(env.Data) {
			_ = json.Unmarshal(env.Data, &p)
		}
		return SmsSent{Status: p.Status, Message: p.Message, ArMessage: p.ArMessage}
	case TypeSmsReceived:
		var p struct {
			Index flexInt `json:"index"`
		}
		if isObject(env.Data) {
			_ = json.Unmarshal(env.Data, &p)
		}
		return SmsReceived{Index: int(p.Index)}
	case TypeSmsListStarted:
		return SmsListStarted{}
	case TypeSmsItem:
		return decodeItem(env.Data)
	case TypeSmsListFinished:
		var p struct {
			Status string `json:"status"`
		}
		if isObject(env.Data) {
			_ = json.Unmarshal(env.Data, &p)
		}
		return SmsListFinished{Status: p.Status}
	case TypeSmsList:
		return decodeList(env.Data)
	case TypeSmsContent:
		return decodeContent(env.Data)
	case TypeSmsDeleted:
		var p struct {
			Index   flexInt `json:"index"`
			Success bool    `json:"success"`
			Message string  `json:"message"`
		}
		if isObject(env.Data) {
			_ = json.Unmarshal(env.Data, &p)
		}
		return SmsDeleted{Index: int(p.Index), Success: p.Success, Message: p.Message}
	case TypeCallerID:
		if isObject(env.Data) {
			var p struct {
				CallerID string `json:"caller_id"`
			}
			_ = json.Unmarshal(env.Data, &p)
			return CallerID{Number: p.CallerID}
		}
		return CallerID{Number: text(env.Data)}
	case TypeCallIncoming:
		return CallIncoming{Text: text(env.Data)}
	case TypeCallStatus:
		return CallStatus{Code: text(env.Data)}
	case TypeCallForwardingStatus:
		return decodeForwarding(env.Data)
	case TypeCallForwardingUpdate:
		var p struct {
			ForwardingRule
			Activate *bool  `json:"activate"`
			Success  bool   `json:"success"`
			Message  string `json:"message"`
		}
		if isObject(env.Data) {
			_ = json.Unmarshal(env.Data, &p)
		}
		rule := p.ForwardingRule
		if p.Activate != nil {
			rule.Active = *p.Activate
		}
		return CallForwardingUpdate{Rule: rule, Success: p.Success, Message: p.Message}
	case TypeLog:
		return decodeLog(env.Data)
	case TypeError, TypeWarning, TypeInfo:
		return Alert{Severity: env.Type, Text: alertText(env.Data)}
	default:
		return Unknown{Type: env.Type}
	}
}

func decodeStatus(raw json.RawMessage) Status {
	var s Status
	if !isObject(raw) {
		return s
	}

	var p map[string]flexString
	if err := json.Unmarshal(raw, &p); err != nil {
		return s
	}

	s.WifiStatus = string(p["wifi_status"])
	s.IPAddress = string(p["ip_address"])
	s.SimStatus = string(p["sim_status"])
	s.SignalQuality = string(p["signal_quality"])
	s.NetworkOperator = string(p["network_operator"])
	s.SimPhoneNumber = string(p["sim_phone_number"])
	s.SimPinStatus = string(p["sim_pin_status"])
	s.Valid = true

	return s
}

func decodeConfig(raw json.RawMessage) Config {
	var p struct {
		ServerHost    flexString `json:"server_host"`
		ServerPort    flexString `json:"server_port"`
		ServerUser    flexString `json:"server_user"`
		APPasswordSet bool       `json:"ap_password_set"`
		SimPinSet     bool       `json:"sim_pin_set"`
	}
	if !isObject(raw) || json.Unmarshal(raw, &p) != nil {
		return Config{}
	}

	port := string(p.ServerPort)
	if port == "0" {
		port = ""
	}

	return Config{
		ServerHost:    string(p.ServerHost),
		ServerPort:    port,
		ServerUser:    string(p.ServerUser),
		APPasswordSet: p.APPasswordSet,
		SimPinSet:     p.SimPinSet,
		Valid:         true,
	}
}

func decodeUssd(raw json.RawMessage) UssdResponse {
	var p struct {
		Type    *flexInt   `json:"type"`
		Message flexString `json:"message"`
		DCS     *flexInt   `json:"dcs"`
	}
	if !isObject(raw) || json.Unmarshal(raw, &p) != nil {
		return UssdResponse{Type: -1, DCS: -1}
	}

	r := UssdResponse{Type: -1, DCS: -1, Message: string(p.Message), Valid: true}
	if p.Type != nil {
		r.Type = int(*p.Type)
	}
	if p.DCS != nil {
		r.DCS = int(*p.DCS)
	}

	return r
}

type itemPayload struct {
	Index     *flexInt   `json:"index"`
	Status    flexString `json:"status"`
	Sender    flexString `json:"sender"`
	Timestamp flexString `json:"timestamp"`
	Body      flexString `json:"body"`
	BodyHex   flexString `json:"body_hex"`
}

func (p itemPayload) item() SmsItem {
	it := SmsItem{
		Status:    string(p.Status),
		Sender:    string(p.Sender),
		Timestamp: string(p.Timestamp),
		Body:      string(p.Body),
		BodyHex:   string(p.BodyHex),
	}
	if p.Index != nil && *p.Index > 0 {
		it.Index = int(*p.Index)
		it.Valid = true
	}

	return it
}

func decodeItem(raw json.RawMessage) SmsItem {
	var p itemPayload
	if !isObject(raw) || json.Unmarshal(raw, &p) != nil {
		return SmsItem{}
	}

	return p.item()
}

func decodeList(raw json.RawMessage) SmsList {
	body := raw
	if isObject(raw) {
		var wrapper struct {
			Messages json.RawMessage `json:"messages"`
		}
		if json.Unmarshal(raw, &wrapper) != nil || !isArray(wrapper.Messages) {
			return SmsList{}
		}
		body = wrapper.Messages
	}
	if !isArray(body) {
		return SmsList{}
	}

	var ps []itemPayload
	if err := json.Unmarshal(body, &ps); err != nil {
		return SmsList{}
	}

	items := make([]SmsItem, 0, len(ps))
	for _, p := range ps {
		items = append(items, p.item())
	}

	return SmsList{Items: items, Available: true}
}

func decodeContent(raw json.RawMessage) SmsContent {
	var p struct {
		Index   *flexInt   `json:"index"`
		Body    flexString `json:"body"`
		BodyHex flexString `json:"body_hex"`
		Error   flexString `json:"error"`
	}
	if !isObject(raw) || json.Unmarshal(raw, &p) != nil {
		return SmsContent{}
	}

	c := SmsContent{Body: string(p.Body), BodyHex: string(p.BodyHex), Error: string(p.Error)}
	if p.Index != nil && c.Error == "" {
		c.Index = int(*p.Index)
		c.Valid = true
	}

	return c
}

func decodeForwarding(raw json.RawMessage) CallForwardingStatus {
	if isArray(raw) {
		var rules []ForwardingRule
		if err := json.Unmarshal(raw, &rules); err != nil {
			return CallForwardingStatus{}
		}
		return CallForwardingStatus{Rules: rules, Valid: true}
	}
	if !isObject(raw) {
		return CallForwardingStatus{}
	}

	var wrapper struct {
		Rules []ForwardingRule `json:"rules"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Rules != nil {
		return CallForwardingStatus{Rules: wrapper.Rules, Valid: true}
	}

	// Keyed form: {"busy": {"active": true, "number": "..."}, ...}.
	var keyed map[string]ForwardingRule
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return CallForwardingStatus{}
	}

	conds := make([]string, 0, len(keyed))
	for cond := range keyed {
		conds = append(conds, cond)
	}
	sort.Strings(conds)

	rules := make([]ForwardingRule, 0, len(keyed))
	for _, cond := range conds {
		r := keyed[cond]
		r.Condition = cond
		rules = append(rules, r)
	}

	return CallForwardingStatus{Rules: rules, Valid: true}
}

func decodeLog(raw json.RawMessage) Log {
	if !isObject(raw) {
		return Log{Message: text(raw)}
	}

	var p struct {
		Level     flexString `json:"level"`
		Message   flexString `json:"message"`
		Msg       flexString `json:"msg"`
		Timestamp flexString `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Log{Message: string(raw)}
	}

	msg := string(p.Message)
	if msg == "" {
		msg = string(p.Msg)
	}
	if msg == "" {
		msg = string(bytes.TrimSpace(raw))
	}

	return Log{Level: string(p.Level), Message: msg, Timestamp: string(p.Timestamp)}
}

func alertText(raw json.RawMessage) string {
	if isObject(raw) {
		var p struct {
			Message flexString `json:"message"`
		}
		if err := json.Unmarshal(raw, &p); err == nil && p.Message != "" {
			return string(p.Message)
		}
	}

	return text(raw)
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			*f = flexInt(i)
			return nil
		}
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*f = flexInt(i)

	return nil
}

// flexString accepts any JSON scalar and keeps its textual form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	*f = flexString(text(b))
	return nil
}
