package session

import (
	"context"
	"fmt"

	"github.com/germanamz/gsmgate/pkg/activity"
	"github.com/germanamz/gsmgate/pkg/device"
	"github.com/germanamz/gsmgate/pkg/envelope"
	"github.com/germanamz/gsmgate/pkg/notify"
)

// dispatch routes one inbound envelope. It runs on the actor and always ends
// by re-evaluating affordances.
func (s *Session) dispatch(env envelope.Envelope) {
	defer s.refresh()

	switch m := envelope.Decode(env).(type) {
	case envelope.Status:
		s.onStatus(m)
	case envelope.Config:
		s.onConfig(m)
	case envelope.UssdResponse:
		s.onUssd(m)
	case envelope.SmsSent:
		s.onSmsSent(m)
	case envelope.SmsReceived:
		s.onSmsReceived(m)
	case envelope.SmsListStarted:
		if s.inbox.Started() {
			s.publish(EventInbox, s.inbox.View())
		}
	case envelope.SmsItem:
		if s.inbox.Item(m) {
			s.publish(EventInbox, s.inbox.View())
		} else if !m.Valid {
			s.log.Warn("sms item without index dropped")
		}
	case envelope.SmsListFinished:
		s.onListFinished(m)
	case envelope.SmsList:
		if s.inbox.Batch(m) {
			s.publish(EventInbox, s.inbox.View())
		}
	case envelope.SmsContent:
		s.onSmsContent(m)
	case envelope.SmsDeleted:
		s.onSmsDeleted(m)
	case envelope.CallerID:
		s.setCaller(m.Number)
	case envelope.CallIncoming:
		if m.Text == ring {
			s.setCaller(TextIncomingCall)
		} else {
			s.setCaller(m.Text)
		}
	case envelope.CallStatus:
		if terminatingCallCodes[m.Code] {
			s.setCaller("")
		}
	case envelope.CallForwardingStatus:
		s.onForwardingStatus(m)
	case envelope.CallForwardingUpdate:
		s.onForwardingUpdate(m)
	case envelope.Log:
		line := activity.Line{At: s.now(), Level: m.Level, Timestamp: m.Timestamp, Text: m.Message}
		s.activity.Append(line)
		s.publish(EventActivity, line)
	case envelope.Alert:
		s.onAlert(m)
	case envelope.Unknown:
		s.log.Warn("unhandled message type", "type", m.Type)
	}
}

func (s *Session) onStatus(m envelope.Status) {
	if !m.Valid {
		s.log.Warn("status payload is not an object")
	}

	s.status = statusOf(m)
	s.pinRequired = m.SimPinStatus == PinRequired

	s.publish(EventStatus, s.status)
	s.publish(EventMode, ModeChange{Mode: s.mode, PinRequired: s.pinRequired})
}

func (s *Session) onConfig(m envelope.Config) {
	if !m.Valid {
		s.log.Warn("config payload is not an object")
	}

	s.config = ConfigDisplay{
		ServerHost:    m.ServerHost,
		ServerPort:    m.ServerPort,
		ServerUser:    m.ServerUser,
		APPasswordSet: m.APPasswordSet,
		SimPinSet:     m.SimPinSet,
	}
	s.publish(EventConfig, s.config)
}

func (s *Session) onUssd(m envelope.UssdResponse) {
	s.loading.USSD = false
	s.loading.USSDReply = false

	state := s.ussd.Handle(m)
	sess := s.ussd.Session()
	s.log.Debug("ussd response", "class", m.Type, "dcs", m.DCS, "state", state, "decode_failed", sess.DecodeFailed)

	s.publish(EventUssd, sess)
}

func (s *Session) onSmsSent(m envelope.SmsSent) {
	s.loading.SMSSend = false

	text := m.Message
	if s.language == LanguageArabic && m.ArMessage != "" {
		text = m.ArMessage
	}

	if m.OK() {
		if text == "" {
			text = TextSMSSent
		}
		s.compose = Compose{}
		s.notify(text, notify.Success)
		s.publish(EventCompose, s.compose)
	} else {
		if text == "" {
			text = TextSMSFailed
		}
		s.notify(text, notify.Error)
	}

	s.publish(EventSmsSent, m.OK())
}

func (s *Session) onSmsReceived(m envelope.SmsReceived) {
	ref := "?"
	if m.Index > 0 {
		ref = fmt.Sprint(m.Index)
	}

	s.notify(fmt.Sprintf("%s (#%s)", TextNewSMS, ref), notify.Info)
	s.publish(EventSmsReceived, m.Index)
}

func (s *Session) onListFinished(m envelope.SmsListFinished) {
	incomplete := s.inbox.Finished(m)
	if incomplete {
		s.notify(fmt.Sprintf("%s (%s).", TextInboxPartial, m.Status), notify.Warning)
	}

	s.publish(EventInbox, s.inbox.View())
}

func (s *Session) onSmsContent(m envelope.SmsContent) {
	d, ok := s.inbox.Open(m)
	if !ok {
		text := m.Error
		if text == "" {
			text = TextReadFailed
		}
		s.notify(text, notify.Error)
		s.publish(EventInbox, s.inbox.View())
		return
	}

	s.publish(EventDetail, d)
}

func (s *Session) onSmsDeleted(m envelope.SmsDeleted) {
	if !m.Success {
		text := m.Message
		if text == "" {
			text = TextDeleteFailed
		}
		s.notify(text, notify.Error)
		return
	}

	ref := "?"
	if m.Index > 0 {
		ref = fmt.Sprint(m.Index)
	}

	s.inbox.Remove(m.Index)
	s.notify(fmt.Sprintf("%s (#%s)", TextSMSDeleted, ref), notify.Success)

	// A full relist heals any streaming updates missed before the delete.
	if err := s.requestInbox(context.Background()); err != nil {
		s.log.Warn("inbox refresh after delete failed", "error", err)
	}
}

func (s *Session) setCaller(c string) {
	if s.caller == c {
		return
	}

	s.caller = c
	s.publish(EventCaller, c)
}

func (s *Session) onForwardingStatus(m envelope.CallForwardingStatus) {
	s.loading.Forwarding = false
	if !m.Valid {
		s.log.Warn("call forwarding payload has an unexpected shape")
		return
	}

	for _, r := range m.Rules {
		cond, err := device.ParseCondition(r.Condition)
		if err != nil {
			s.log.Warn("unknown forwarding condition", "condition", r.Condition)
			continue
		}
		s.forwarding[cond] = ForwardingRule{Active: r.Active, Number: r.Number}
	}

	s.publish(EventForwarding, copyForwarding(s.forwarding))
}

func (s *Session) onForwardingUpdate(m envelope.CallForwardingUpdate) {
	s.loading.Forwarding = false

	if !m.Success {
		text := m.Message
		if text == "" {
			text = TextForwardFailed
		}
		s.notify(text, notify.Error)
		return
	}

	if cond, err := device.ParseCondition(m.Rule.Condition); err == nil {
		s.forwarding[cond] = ForwardingRule{Active: m.Rule.Active, Number: m.Rule.Number}
		s.publish(EventForwarding, copyForwarding(s.forwarding))
	}

	text := m.Message
	if text == "" {
		text = TextForwardUpdated
	}
	s.notify(text, notify.Success)
}

// onAlert shows a device error, warning or info and clears every spinner,
// since the device does not say which request failed.
func (s *Session) onAlert(m envelope.Alert) {
	s.loading = Loading{}
	s.inbox.StopLoading()

	switch m.Severity {
	case envelope.TypeError:
		s.notify(fmt.Sprintf("%s: %s", TextErrorPrefix, m.Text), notify.Error)
	case envelope.TypeWarning:
		s.notify(m.Text, notify.Warning)
	default:
		s.notify(m.Text, notify.Info)
	}

	s.publish(EventLoading, s.loading)
}

// requestInbox asks for a fresh listing and clears the view. It runs on the
// actor.
func (s *Session) requestInbox(ctx context.Context) error {
	if err := s.device.GetSMSList(ctx); err != nil {
		return err
	}

	s.inbox.RequestRefresh()
	s.publish(EventInbox, s.inbox.View())

	return nil
}
