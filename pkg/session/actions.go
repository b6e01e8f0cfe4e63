package session

import (
	"context"
	"errors"
	"strings"

	"github.com/germanamz/gsmgate/pkg/device"
	"github.com/germanamz/gsmgate/pkg/notify"
	"github.com/germanamz/gsmgate/pkg/segment"
	"github.com/germanamz/gsmgate/pkg/ussd"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

// ErrNoWebAPI is returned by HTTP actions when the session has no WebAPI.
var ErrNoWebAPI = errors.New("session: no web api configured")

// fault surfaces a rejected user action as a notification. missing is the
// text used for ErrMissingField.
func (s *Session) fault(err error, missing string) error {
	switch {
	case errors.Is(err, device.ErrNotConnected):
		s.notify(TextNotConnected, notify.Error)
	case errors.Is(err, device.ErrInvalidIndex):
		s.notify(TextInvalidIndex, notify.Error)
	case errors.Is(err, device.ErrMissingField):
		s.notify(missing, notify.Error)
	case errors.Is(err, device.ErrNoActiveSession):
		s.notify(TextUSSDNoSession, notify.Warning)
	case errors.Is(err, device.ErrSessionActive):
		s.notify(TextUSSDBusy, notify.Warning)
	case errors.Is(err, device.ErrInvalidCondition):
		s.notify(TextForwardCond, notify.Error)
	default:
		s.notify(err.Error(), notify.Error)
	}

	return err
}

// --- Status and configuration ---

// RefreshStatus requests a status snapshot.
func (s *Session) RefreshStatus(ctx context.Context) error {
	return s.do(func() error {
		if err := s.device.GetStatus(ctx); err != nil {
			return s.fault(err, "")
		}
		return nil
	})
}

// RefreshConfig requests the gateway configuration.
func (s *Session) RefreshConfig(ctx context.Context) error {
	return s.do(func() error {
		if err := s.device.GetConfig(ctx); err != nil {
			return s.fault(err, "")
		}
		return nil
	})
}

// SetLanguage selects the language used to pick localized device messages.
func (s *Session) SetLanguage(lang string) error {
	return s.do(func() error {
		s.language = lang
		return nil
	})
}

// --- Inbox ---

// RefreshInbox clears the inbox and requests a fresh listing.
func (s *Session) RefreshInbox(ctx context.Context) error {
	return s.do(func() error {
		if err := s.requestInbox(ctx); err != nil {
			return s.fault(err, "")
		}
		return nil
	})
}

// ReadSMS requests the full content of message index. Non-positive indices
// are rejected without a request.
func (s *Session) ReadSMS(ctx context.Context, index int) error {
	return s.do(func() error {
		if err := s.device.ReadSMS(ctx, index); err != nil {
			return s.fault(err, "")
		}
		return nil
	})
}

// DeleteSMS deletes message index. The caller is responsible for asking the
// user to confirm first.
func (s *Session) DeleteSMS(ctx context.Context, index int) error {
	return s.do(func() error {
		if err := s.device.DeleteSMS(ctx, index); err != nil {
			return s.fault(err, "")
		}
		return nil
	})
}

// CloseDetail dismisses the open message detail.
func (s *Session) CloseDetail() error {
	return s.do(func() error {
		s.inbox.CloseDetail()
		s.publish(EventDetail, nil)
		return nil
	})
}

// --- Compose ---

// SetCompose updates the SMS being written and returns its segmentation.
func (s *Session) SetCompose(number, message string) segment.Result {
	var res segment.Result
	_ = s.do(func() error {
		s.compose = Compose{Number: number, Message: message, Segments: segment.Count(message)}
		res = s.compose.Segments
		s.publish(EventCompose, s.compose)
		return nil
	})

	return res
}

// SendSMS sends message to number. Both are required.
func (s *Session) SendSMS(ctx context.Context, number, message string) error {
	return s.do(func() error {
		s.compose = Compose{Number: number, Message: message, Segments: segment.Count(message)}
		if err := s.device.SendSMS(ctx, number, message); err != nil {
			return s.fault(err, TextSMSFields)
		}

		s.loading.SMSSend = true
		s.publish(EventLoading, s.loading)
		return nil
	})
}

// --- USSD ---

// SendUSSD starts a USSD exchange. It is rejected with
// device.ErrSessionActive while the network is waiting for a reply.
func (s *Session) SendUSSD(ctx context.Context, code string) error {
	return s.do(func() error {
		if s.ussd.State() == ussd.StateAwaitingReply {
			return s.fault(device.ErrSessionActive, "")
		}
		if err := s.device.SendUSSD(ctx, code); err != nil {
			return s.fault(err, TextUSSDCode)
		}

		s.ussd.Begin(false)
		s.loading.USSD = true
		s.publish(EventUssd, s.ussd.Session())
		return nil
	})
}

// SendUSSDReply answers the pending network prompt. It is rejected with
// device.ErrNoActiveSession when there is none.
func (s *Session) SendUSSDReply(ctx context.Context, reply string) error {
	return s.do(func() error {
		if s.ussd.State() != ussd.StateAwaitingReply {
			return s.fault(device.ErrNoActiveSession, "")
		}
		if err := s.device.SendUSSDReply(ctx, reply); err != nil {
			return s.fault(err, TextUSSDReply)
		}

		s.ussd.Begin(true)
		s.loading.USSDReply = true
		s.publish(EventUssd, s.ussd.Session())
		return nil
	})
}

// CancelUSSD ends the exchange. The local session goes idle even when the
// request cannot be sent.
func (s *Session) CancelUSSD(ctx context.Context) error {
	return s.do(func() error {
		err := s.device.CancelUSSD(ctx)

		s.ussd.Cancel()
		s.loading.USSD = false
		s.loading.USSDReply = false
		s.publish(EventUssd, s.ussd.Session())

		if err != nil {
			return s.fault(err, "")
		}
		return nil
	})
}

// --- Call forwarding ---

// QueryForwarding requests the forwarding status of every condition.
func (s *Session) QueryForwarding(ctx context.Context) error {
	return s.do(func() error {
		if err := s.device.GetCallForwardingStatus(ctx); err != nil {
			return s.fault(err, "")
		}

		s.loading.Forwarding = true
		s.publish(EventLoading, s.loading)
		return nil
	})
}

// SetForwarding updates one forwarding condition.
func (s *Session) SetForwarding(ctx context.Context, condition string, activate bool, number string) error {
	return s.do(func() error {
		if err := s.device.SetCallForwarding(ctx, condition, activate, number); err != nil {
			return s.fault(err, TextForwardNumber)
		}

		s.loading.Forwarding = true
		s.publish(EventLoading, s.loading)
		return nil
	})
}

// --- HTTP actions ---

// EnterPIN submits the SIM PIN. The format is checked locally first.
func (s *Session) EnterPIN(ctx context.Context, pin string) error {
	pin = strings.TrimSpace(pin)
	if err := webapi.ValidatePIN(pin); err != nil {
		_ = s.do(func() error {
			s.notify(TextPinFormat, notify.Error)
			return nil
		})
		return err
	}
	if err := s.requireWeb(); err != nil {
		return err
	}

	s.setLoading(func(l *Loading) { l.PIN = true })
	res, err := s.web.EnterPIN(ctx, pin)

	return s.do(func() error {
		s.loading.PIN = false
		s.publish(EventLoading, s.loading)

		if err != nil && res.Message == "" {
			s.notify(TextPinFailed, notify.Error)
			return err
		}
		s.showResult(res, TextPinFailed)
		if res.Success {
			s.pinRequired = false
			s.publish(EventMode, ModeChange{Mode: s.mode})
		}
		return err
	})
}

// ScanWiFi lists visible networks. The gateway only scans in AP mode.
func (s *Session) ScanWiFi(ctx context.Context) error {
	if err := s.requireWeb(); err != nil {
		return err
	}

	s.setLoading(func(l *Loading) { l.WiFiScan = true })
	res, err := s.web.ScanWiFi(ctx)

	return s.do(func() error {
		s.loading.WiFiScan = false
		s.publish(EventLoading, s.loading)

		switch {
		case err != nil && res.Message == "":
			s.wifi = WiFiScan{Message: TextScanError}
		case res.Success && len(res.Networks) > 0:
			s.wifi = WiFiScan{Networks: res.Networks}
		case res.Message != "":
			s.wifi = WiFiScan{Message: res.Message}
		default:
			s.wifi = WiFiScan{Message: TextScanFailed}
		}

		s.publish(EventWiFi, s.wifi)
		return err
	})
}

// SaveWiFi stores station credentials on the gateway, which then reboots.
func (s *Session) SaveWiFi(ctx context.Context, ssid, password string) error {
	if strings.TrimSpace(ssid) == "" {
		_ = s.do(func() error {
			s.notify(TextSSIDRequired, notify.Error)
			return nil
		})
		return webapi.ErrMissingSSID
	}
	if err := s.requireWeb(); err != nil {
		return err
	}

	_ = s.do(func() error {
		s.notify(TextSavingWiFi, notify.Info)
		return nil
	})
	res, err := s.web.SaveWiFi(ctx, ssid, password)

	return s.do(func() error {
		if err != nil && res.Message == "" {
			s.notify(TextWiFiFailed, notify.Error)
			return err
		}
		if !res.Success {
			s.showResult(res, TextWiFiFailed)
		}
		return err
	})
}

// SaveSettings submits gateway settings and reloads the configuration on
// success.
func (s *Session) SaveSettings(ctx context.Context, settings webapi.Settings) error {
	if err := s.requireWeb(); err != nil {
		return err
	}

	_ = s.do(func() error {
		s.notify(TextSavingConfig, notify.Info)
		return nil
	})
	res, err := s.web.SaveConfig(ctx, settings)

	return s.do(func() error {
		if err != nil && res.Message == "" {
			s.notify(TextConfigFailed, notify.Error)
			return err
		}
		s.showResult(res, TextConfigFailed)
		if res.Success {
			if err := s.device.GetConfig(ctx); err != nil {
				s.log.Warn("config reload failed", "error", err)
			}
		}
		return err
	})
}

// Reboot restarts the gateway. The caller is responsible for confirmation.
func (s *Session) Reboot(ctx context.Context) error {
	if err := s.requireWeb(); err != nil {
		return err
	}

	_ = s.do(func() error {
		s.notify(TextRebooting, notify.Info)
		return nil
	})

	if _, err := s.web.Reboot(ctx); err != nil {
		s.log.Warn("reboot request failed", "error", err)
		return err
	}

	return nil
}

func (s *Session) requireWeb() error {
	if s.web != nil {
		return nil
	}

	_ = s.do(func() error {
		s.notify(TextNoWebAPI, notify.Error)
		return nil
	})

	return ErrNoWebAPI
}

func (s *Session) setLoading(fn func(l *Loading)) {
	_ = s.do(func() error {
		fn(&s.loading)
		s.publish(EventLoading, s.loading)
		return nil
	})
}

// showResult notifies the device's message, falling back to failed when a
// failure carries none.
func (s *Session) showResult(res webapi.Result, failed string) {
	text := res.Message
	if res.Success {
		if text != "" {
			s.notify(text, notify.Success)
		}
		return
	}

	if text == "" {
		text = failed
	}
	s.notify(text, notify.Error)
}
