package main

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/germanamz/gsmgate/pkg/device"
	"github.com/germanamz/gsmgate/pkg/gsmdir"
	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/transport"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

// tab is one of the station-mode views.
type tab int

const (
	tabStatus tab = iota
	tabInbox
	tabCompose
	tabUSSD
	tabCalls
	tabActivity
	tabHelp
	tabCount
)

var tabNames = [tabCount]string{"Status", "Inbox", "Compose", "USSD", "Calls", "Activity", "Help"}

// field identifies a text input.
type field int

const (
	fieldNone field = iota
	fieldNumber
	fieldMessage
	fieldUSSD
	fieldForwardNumber
	fieldPIN
	fieldSSID
	fieldWiFiPassword
	fieldCount
)

// appModel is the root bubbletea model. It renders the last snapshot and
// turns keys into session actions run as tea.Cmds.
type appModel struct {
	ctx          context.Context
	sess         *session.Session
	dir          gsmdir.Dir
	prefs        gsmdir.Prefs
	snap         session.Snapshot
	tab          tab
	focus        field
	inputs       [fieldCount]textinput.Model
	prompt       *prompt
	inboxCursor  int
	fwdCursor    int
	wifiCursor   int
	cancelBridge context.CancelFunc
	flash        string
	width        int
	height       int
	spinnerIdx   int
	ticking      bool
}

func newAppModel(ctx context.Context, sess *session.Session, dir gsmdir.Dir, prefs gsmdir.Prefs) appModel {
	m := appModel{
		ctx:   ctx,
		sess:  sess,
		dir:   dir,
		prefs: prefs,
		snap:  sess.Snapshot(),
	}

	m.inputs[fieldNumber] = newTextInput("+15550100", 20, false)
	m.inputs[fieldMessage] = newTextInput("Message", 0, false)
	m.inputs[fieldUSSD] = newTextInput("*100#", 64, false)
	m.inputs[fieldForwardNumber] = newTextInput("Forward to number", 20, false)
	m.inputs[fieldPIN] = newTextInput("PIN", 8, true)
	m.inputs[fieldSSID] = newTextInput("Network name", 32, false)
	m.inputs[fieldWiFiPassword] = newTextInput("Password", 64, true)
	m.syncFocus()

	return m
}

func newTextInput(placeholder string, limit int, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	if secret {
		ti.EchoMode = textinput.EchoPassword
	}
	return ti
}

func (m appModel) Init() tea.Cmd {
	return nil
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		initMarkdownRenderer(m.width - 4)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case programReadyMsg:
		m.cancelBridge = startBridge(m.ctx, msg.program, m.sess)
		ctx, sess := m.ctx, m.sess
		return m, func() tea.Msg { return startedMsg{err: sess.Start(ctx)} }

	case startedMsg, actionDoneMsg:
		m.applySnapshot(m.sess.Snapshot(), nil)
		return m, m.maybeTick()

	case snapshotMsg:
		m.applySnapshot(msg.snap, msg.kinds)
		return m, m.maybeTick()

	case prefsSavedMsg:
		m.flash = ""
		if msg.err != nil {
			m.flash = "Preferences not saved: " + msg.err.Error()
		} else {
			m.prefs = msg.prefs
		}
		// SetLanguage publishes no event.
		m.applySnapshot(m.sess.Snapshot(), nil)
		return m, nil

	case tickMsg:
		m.ticking = false
		if m.busy() {
			m.spinnerIdx++
			return m, m.maybeTick()
		}
		return m, nil
	}

	// Forward everything else (cursor blinks, form internals) to whatever
	// holds focus.
	switch {
	case m.prompt != nil:
		return m.updatePrompt(msg)
	case m.focus != fieldNone:
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}

	return m, nil
}

// applySnapshot stores snap and brings local view state in line with it.
func (m *appModel) applySnapshot(snap session.Snapshot, kinds []session.EventKind) {
	m.snap = snap

	// The session clears the draft once the device confirms the send.
	if slices.Contains(kinds, session.EventSmsSent) && snap.Compose.Number == "" && snap.Compose.Message == "" {
		m.inputs[fieldNumber].Reset()
		m.inputs[fieldMessage].Reset()
	}

	m.inboxCursor = clamp(m.inboxCursor, len(snap.Inbox.Entries))
	m.wifiCursor = clamp(m.wifiCursor, len(snap.WiFi.Networks))
	m.syncFocus()
}

// syncFocus keeps input focus consistent with the screen the mode selects.
func (m *appModel) syncFocus() {
	aff := m.snap.Affordances
	switch {
	case aff.PinEntry:
		if m.focus != fieldPIN {
			m.focusField(fieldPIN)
		}
	case aff.WiFiSetup:
		if m.focus != fieldNone && m.focus != fieldSSID && m.focus != fieldWiFiPassword {
			m.focusField(fieldNone)
		}
	default:
		if m.focus == fieldPIN || m.focus == fieldSSID || m.focus == fieldWiFiPassword {
			m.focusField(fieldNone)
		}
	}
}

func (m *appModel) focusField(f field) tea.Cmd {
	if m.focus != fieldNone {
		m.inputs[m.focus].Blur()
	}
	m.focus = f
	if f == fieldNone {
		return nil
	}
	return m.inputs[f].Focus()
}

func clamp(i, n int) int {
	return max(0, min(i, n-1))
}

func (m appModel) busy() bool {
	return m.snap.Loading.Any() || m.snap.Connection == transport.StateConnecting
}

func (m *appModel) maybeTick() tea.Cmd {
	if m.ticking || !m.busy() {
		return nil
	}
	m.ticking = true
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// quit stops the bridge from a command; stopping it inline could deadlock
// against a pending p.Send.
func (m appModel) quit() (tea.Model, tea.Cmd) {
	stop := m.cancelBridge
	if stop == nil {
		return m, tea.Quit
	}
	return m, tea.Batch(func() tea.Msg {
		stop()
		return nil
	}, tea.Quit)
}

// act runs fn off the update loop. fn has the shape of a *session.Session
// method expression, so (*session.Session).Reboot can be passed directly.
func (m appModel) act(fn func(s *session.Session, ctx context.Context) error) tea.Cmd {
	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		return actionDoneMsg{err: fn(sess, ctx)}
	}
}

// --- Key handling ---

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}

	if m.prompt != nil {
		if msg.Type == tea.KeyEsc {
			m.prompt = nil
			return m, nil
		}
		return m.updatePrompt(msg)
	}

	aff := m.snap.Affordances
	switch {
	case aff.PinEntry:
		return m.inputKey(msg)
	case aff.WiFiSetup:
		return m.setupKey(msg)
	}

	if m.focus != fieldNone {
		return m.inputKey(msg)
	}

	switch key := msg.String(); key {
	case "q":
		return m.quit()
	case "tab":
		m.tab = (m.tab + 1) % tabCount
		return m, nil
	case "shift+tab":
		m.tab = (m.tab + tabCount - 1) % tabCount
		return m, nil
	case "?":
		m.tab = tabHelp
		return m, nil
	case "z":
		m.sess.DismissNotification()
		m.snap.Notification = nil
		return m, nil
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] < '1'+byte(tabCount) {
			m.tab = tab(key[0] - '1')
			return m, nil
		}
	}

	switch m.tab {
	case tabStatus:
		return m.statusKey(msg)
	case tabInbox:
		return m.inboxKey(msg)
	case tabCompose:
		return m.composeKey(msg)
	case tabUSSD:
		return m.ussdKey(msg)
	case tabCalls:
		return m.callsKey(msg)
	}

	return m, nil
}

// inputKey edits the focused input. Enter submits, Esc leaves the field.
func (m appModel) inputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyEsc:
		if m.focus == fieldPIN {
			return m, nil
		}
		return m, m.focusField(fieldNone)
	case tea.KeyTab, tea.KeyDown:
		switch m.focus {
		case fieldNumber:
			return m, m.focusField(fieldMessage)
		case fieldSSID:
			return m, m.focusField(fieldWiFiPassword)
		}
	case tea.KeyShiftTab, tea.KeyUp:
		switch m.focus {
		case fieldMessage:
			return m, m.focusField(fieldNumber)
		case fieldWiFiPassword:
			return m, m.focusField(fieldSSID)
		}
	}

	var cmd tea.Cmd
	before := m.inputs[m.focus].Value()
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)

	if (m.focus == fieldNumber || m.focus == fieldMessage) && m.inputs[m.focus].Value() != before {
		number, message := m.inputs[fieldNumber].Value(), m.inputs[fieldMessage].Value()
		sess := m.sess
		cmd = tea.Batch(cmd, func() tea.Msg {
			sess.SetCompose(number, message)
			return nil
		})
	}

	return m, cmd
}

// submit performs the action of the focused input.
func (m appModel) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.inputs[m.focus].Value())

	switch m.focus {
	case fieldNumber:
		return m, m.focusField(fieldMessage)

	case fieldMessage:
		number, message := strings.TrimSpace(m.inputs[fieldNumber].Value()), m.inputs[fieldMessage].Value()
		m.focusField(fieldNone)
		return m, m.act(func(s *session.Session, ctx context.Context) error {
			return s.SendSMS(ctx, number, message)
		})

	case fieldUSSD:
		reply := m.snap.Affordances.ReplyUSSD
		m.inputs[fieldUSSD].Reset()
		m.focusField(fieldNone)
		return m, m.act(func(s *session.Session, ctx context.Context) error {
			if reply {
				return s.SendUSSDReply(ctx, value)
			}
			return s.SendUSSD(ctx, value)
		})

	case fieldForwardNumber:
		cond := string(device.Conditions[m.fwdCursor])
		m.inputs[fieldForwardNumber].Reset()
		m.focusField(fieldNone)
		return m, m.act(func(s *session.Session, ctx context.Context) error {
			return s.SetForwarding(ctx, cond, true, value)
		})

	case fieldPIN:
		m.inputs[fieldPIN].Reset()
		return m, m.act(func(s *session.Session, ctx context.Context) error {
			return s.EnterPIN(ctx, value)
		})

	case fieldSSID:
		return m, m.focusField(fieldWiFiPassword)

	case fieldWiFiPassword:
		ssid, password := strings.TrimSpace(m.inputs[fieldSSID].Value()), m.inputs[fieldWiFiPassword].Value()
		m.focusField(fieldNone)
		return m, m.act(func(s *session.Session, ctx context.Context) error {
			return s.SaveWiFi(ctx, ssid, password)
		})
	}

	return m, nil
}

func (m appModel) statusKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		return m, m.act((*session.Session).RefreshStatus)
	case "c":
		return m, m.act((*session.Session).RefreshConfig)
	case "l":
		return m, m.toggleLanguage()
	case "e":
		return m.openPrompt(settingsPrompt(m.snap.Config, m.formWidth(), m.saveSettings))
	case "b":
		return m.confirmReboot()
	}
	return m, nil
}

func (m appModel) inboxKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.snap.Inbox.Entries

	switch msg.String() {
	case "r":
		return m, m.act((*session.Session).RefreshInbox)
	case "up", "k":
		m.inboxCursor = clamp(m.inboxCursor-1, len(entries))
	case "down", "j":
		m.inboxCursor = clamp(m.inboxCursor+1, len(entries))
	case "enter":
		if len(entries) == 0 {
			return m, nil
		}
		index := entries[m.inboxCursor].Index
		return m, m.act(func(s *session.Session, ctx context.Context) error {
			return s.ReadSMS(ctx, index)
		})
	case "d":
		if len(entries) == 0 {
			return m, nil
		}
		e := entries[m.inboxCursor]
		return m.openPrompt(confirmPrompt(
			"Delete this message?",
			fit("#"+strconv.Itoa(e.Index)+" from "+e.Sender+": "+e.Preview, m.formWidth()),
			m.formWidth(),
			m.act(func(s *session.Session, ctx context.Context) error {
				return s.DeleteSMS(ctx, e.Index)
			}),
		))
	case "esc":
		if m.snap.Detail != nil {
			return m, m.act(func(s *session.Session, _ context.Context) error {
				return s.CloseDetail()
			})
		}
	}

	return m, nil
}

func (m appModel) composeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "i", "n":
		return m, m.focusField(fieldNumber)
	case "m":
		return m, m.focusField(fieldMessage)
	}
	return m, nil
}

func (m appModel) ussdKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	aff := m.snap.Affordances

	switch msg.String() {
	case "enter", "i":
		if aff.InitiateUSSD || aff.ReplyUSSD {
			return m, m.focusField(fieldUSSD)
		}
	case "x", "esc":
		if aff.CancelUSSD {
			return m, m.act((*session.Session).CancelUSSD)
		}
	}
	return m, nil
}

func (m appModel) callsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "f", "r":
		return m, m.act((*session.Session).QueryForwarding)
	case "up", "k":
		m.fwdCursor = clamp(m.fwdCursor-1, len(device.Conditions))
	case "down", "j":
		m.fwdCursor = clamp(m.fwdCursor+1, len(device.Conditions))
	case "enter", "e":
		return m, m.focusField(fieldForwardNumber)
	case "x":
		cond := string(device.Conditions[m.fwdCursor])
		return m, m.act(func(s *session.Session, ctx context.Context) error {
			return s.SetForwarding(ctx, cond, false, "")
		})
	}
	return m, nil
}

// setupKey drives the access-point provisioning screen.
func (m appModel) setupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus != fieldNone {
		return m.inputKey(msg)
	}

	networks := m.snap.WiFi.Networks
	switch msg.String() {
	case "q":
		return m.quit()
	case "r":
		return m, m.act((*session.Session).ScanWiFi)
	case "up", "k":
		m.wifiCursor = clamp(m.wifiCursor-1, len(networks))
	case "down", "j":
		m.wifiCursor = clamp(m.wifiCursor+1, len(networks))
	case "enter":
		if len(networks) > 0 {
			m.inputs[fieldSSID].SetValue(networks[m.wifiCursor].SSID)
			return m, m.focusField(fieldWiFiPassword)
		}
		return m, m.focusField(fieldSSID)
	case "s":
		return m, m.focusField(fieldSSID)
	case "b":
		return m.confirmReboot()
	}
	return m, nil
}

func (m appModel) confirmReboot() (tea.Model, tea.Cmd) {
	return m.openPrompt(confirmPrompt(
		"Reboot the gateway?",
		"The connection drops until it is back.",
		m.formWidth(),
		m.act((*session.Session).Reboot),
	))
}

func (m appModel) toggleLanguage() tea.Cmd {
	next := gsmdir.LanguageArabic
	if m.snap.Language == gsmdir.LanguageArabic {
		next = gsmdir.LanguageEnglish
	}

	prefs, dir, sess := m.prefs, m.dir, m.sess
	prefs.Language = next

	return func() tea.Msg {
		if err := sess.SetLanguage(next); err != nil {
			return prefsSavedMsg{err: err}
		}
		return prefsSavedMsg{prefs: prefs, err: gsmdir.SavePrefs(dir, prefs)}
	}
}

func (m appModel) saveSettings(settings webapi.Settings) tea.Cmd {
	return m.act(func(s *session.Session, ctx context.Context) error {
		return s.SaveSettings(ctx, settings)
	})
}

func (m appModel) formWidth() int {
	if m.width <= 0 {
		return 60
	}
	return max(20, min(m.width-4, 72))
}
