package session

// User-facing texts. Device-provided messages take precedence where the
// device sends one.
const (
	TextConnected      = "Connected to device."
	TextDisconnected   = "Disconnected. Trying to reconnect..."
	TextNotConnected   = "Not connected to device."
	TextInvalidData    = "Received invalid data"
	TextNewSMS         = "New SMS"
	TextSMSSent        = "SMS sent successfully."
	TextSMSFailed      = "Failed to send SMS."
	TextSMSFields      = "Recipient and message are required."
	TextSMSDeleted     = "SMS deleted."
	TextDeleteFailed   = "Failed to delete SMS."
	TextReadFailed     = "Error reading SMS content."
	TextInvalidIndex   = "Invalid message index."
	TextInboxPartial   = "Inbox listing incomplete"
	TextUSSDCode       = "USSD code is required."
	TextUSSDReply      = "Reply is required."
	TextUSSDNoSession  = "No active USSD session."
	TextUSSDBusy       = "A USSD session is awaiting your reply. Reply or cancel it first."
	TextIncomingCall   = "Incoming call..."
	TextForwardUpdated = "Call forwarding updated."
	TextForwardFailed  = "Failed to update call forwarding."
	TextForwardNumber  = "A forwarding number is required."
	TextForwardCond    = "Unknown forwarding condition."
	TextErrorPrefix    = "Error"
	TextModeFailed     = "Failed to get device mode."
	TextPinFormat      = "PIN must be 4-8 digits."
	TextPinFailed      = "PIN submission failed."
	TextScanFailed     = "Scan failed."
	TextScanError      = "Scan error."
	TextSSIDRequired   = "SSID is required."
	TextSavingWiFi     = "Saving WiFi and rebooting..."
	TextWiFiFailed     = "Failed to save WiFi."
	TextSavingConfig   = "Saving settings..."
	TextConfigFailed   = "Failed to save settings."
	TextRebooting      = "Rebooting..."
	TextNoWebAPI       = "HTTP actions are not available."

	TextAPPasswordSet    = "AP password set"
	TextAPPasswordNotSet = "AP password not set"
	TextSimPinSet        = "PIN saved"
	TextSimPinNotSet     = "PIN not saved"
)

// Terminating call status codes clear the current caller.
var terminatingCallCodes = map[string]bool{
	"NO CARRIER": true,
	"BUSY":       true,
	"NO ANSWER":  true,
}

// ring is the call_incoming text of a plain ring indication.
const ring = "RING"

// LanguageArabic selects device messages in Arabic where provided.
const LanguageArabic = "ar"
