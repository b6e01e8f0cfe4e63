package session

import (
	"maps"

	"github.com/germanamz/gsmgate/pkg/activity"
	"github.com/germanamz/gsmgate/pkg/device"
	"github.com/germanamz/gsmgate/pkg/envelope"
	"github.com/germanamz/gsmgate/pkg/inbox"
	"github.com/germanamz/gsmgate/pkg/notify"
	"github.com/germanamz/gsmgate/pkg/segment"
	"github.com/germanamz/gsmgate/pkg/ussd"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

// Unknown is rendered for status fields the device has not reported.
const Unknown = "---"

// PinRequired is the sim_pin_status value that gates station controls.
const PinRequired = "Required"

// DeviceStatus is the latest status snapshot with empty fields replaced by
// Unknown.
type DeviceStatus struct {
	WifiStatus      string
	IPAddress       string
	SimStatus       string
	SignalQuality   string
	NetworkOperator string
	SimPhoneNumber  string
	SimPinStatus    string
}

// UnknownStatus is the status shown before the first report and after a
// disconnect.
func UnknownStatus() DeviceStatus {
	return DeviceStatus{
		WifiStatus:      Unknown,
		IPAddress:       Unknown,
		SimStatus:       Unknown,
		SignalQuality:   Unknown,
		NetworkOperator: Unknown,
		SimPhoneNumber:  Unknown,
		SimPinStatus:    Unknown,
	}
}

func statusOf(s envelope.Status) DeviceStatus {
	orUnknown := func(v string) string {
		if v == "" {
			return Unknown
		}
		return v
	}

	return DeviceStatus{
		WifiStatus:      orUnknown(s.WifiStatus),
		IPAddress:       orUnknown(s.IPAddress),
		SimStatus:       orUnknown(s.SimStatus),
		SignalQuality:   orUnknown(s.SignalQuality),
		NetworkOperator: orUnknown(s.NetworkOperator),
		SimPhoneNumber:  orUnknown(s.SimPhoneNumber),
		SimPinStatus:    orUnknown(s.SimPinStatus),
	}
}

// ConfigDisplay is the gateway configuration as shown to the user. The AP
// password and SIM PIN are never sent by the device; only whether they are
// set.
type ConfigDisplay struct {
	ServerHost    string
	ServerPort    string
	ServerUser    string
	APPasswordSet bool
	SimPinSet     bool
}

// APPasswordPlaceholder is the hint shown in place of the AP password.
func (c ConfigDisplay) APPasswordPlaceholder() string {
	if c.APPasswordSet {
		return TextAPPasswordSet
	}
	return TextAPPasswordNotSet
}

// SimPinPlaceholder is the hint shown in place of the saved SIM PIN.
func (c ConfigDisplay) SimPinPlaceholder() string {
	if c.SimPinSet {
		return TextSimPinSet
	}
	return TextSimPinNotSet
}

// ForwardingRule is the forwarding setting of one condition.
type ForwardingRule struct {
	Active bool
	Number string
}

// Loading holds the per-action progress indicators.
type Loading struct {
	USSD       bool
	USSDReply  bool
	SMSSend    bool
	Inbox      bool
	PIN        bool
	WiFiScan   bool
	Forwarding bool
}

// Any reports whether any indicator is on.
func (l Loading) Any() bool {
	return l.USSD || l.USSDReply || l.SMSSend || l.Inbox || l.PIN || l.WiFiScan || l.Forwarding
}

// Compose holds the SMS being written and its segmentation.
type Compose struct {
	Number   string
	Message  string
	Segments segment.Result
}

// Affordances lists which controls are enabled.
type Affordances struct {
	InitiateUSSD    bool
	ReplyUSSD       bool
	CancelUSSD      bool
	PinEntry        bool // The SIM PIN prompt is shown.
	StationControls bool // SMS, USSD and call controls accept input.
	WiFiSetup       bool // The AP-mode provisioning view is shown.
}

// WiFiScan is the latest scan outcome.
type WiFiScan struct {
	Networks []webapi.Network
	Message  string
}

// Snapshot is a consistent copy of the session state for rendering.
type Snapshot struct {
	Connection   string
	Mode         webapi.Mode
	PinRequired  bool
	Status       DeviceStatus
	Config       ConfigDisplay
	UssdState    string
	Ussd         ussd.Session
	Affordances  Affordances
	Inbox        inbox.View
	Detail       *inbox.Detail
	Caller       string
	Forwarding   map[device.Condition]ForwardingRule
	Loading      Loading
	Compose      Compose
	WiFi         WiFiScan
	Language     string
	Notification *notify.Notification
	Activity     []activity.Line
}

// PinGated reports whether the PIN prompt blocks station controls.
func (s Snapshot) PinGated() bool {
	return s.PinRequired && s.Mode == webapi.ModeSTA
}

func copyForwarding(m map[device.Condition]ForwardingRule) map[device.Condition]ForwardingRule {
	out := make(map[device.Condition]ForwardingRule, len(m))
	maps.Copy(out, m)

	return out
}
