package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/germanamz/gsmgate/pkg/device"
	"github.com/germanamz/gsmgate/pkg/gsmdir"
	"github.com/germanamz/gsmgate/pkg/inbox"
	"github.com/germanamz/gsmgate/pkg/notify"
	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/transport"
	"github.com/germanamz/gsmgate/pkg/ussd"
)

const helpMarkdown = `# gsmctl

## Global

| Key | Action |
| --- | --- |
| tab / shift+tab | Next / previous view |
| 1-7 | Jump to a view |
| ? | This help |
| z | Dismiss the notification |
| q, ctrl+c | Quit |

## Views

- **Status**: r refresh status, c reload settings, e edit settings, l switch language, b reboot.
- **Inbox**: r reload, j/k move, enter read, esc close the message, d delete.
- **Compose**: enter to write, tab between number and message, enter on the message sends.
- **USSD**: enter to dial a code or reply to a menu, x to end the session.
- **Calls**: f query forwarding, j/k pick a condition, e set a number, x disable.

When the gateway runs its setup access point, only Wi-Fi provisioning is
available: r scans, enter picks a network, s types a name by hand.
`

var inboxPlaceholders = map[inbox.Placeholder]string{
	inbox.PlaceholderLoading:     "Loading SMS list...",
	inbox.PlaceholderEmpty:       "No messages.",
	inbox.PlaceholderUnavailable: "SMS list not yet available.",
}

var conditionNames = map[device.Condition]string{
	device.Unconditional: "Always",
	device.Busy:          "When busy",
	device.NoReply:       "No reply",
	device.NotReachable:  "Not reachable",
}

func (m appModel) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")

	switch {
	case m.snap.Affordances.WiFiSetup:
		b.WriteString(m.setupView())
	case m.snap.Affordances.PinEntry:
		b.WriteString(m.pinView())
	default:
		b.WriteString(m.tabsView())
		b.WriteString("\n\n")
		b.WriteString(m.tabView())
	}

	if m.prompt != nil {
		b.WriteString("\n\n")
		b.WriteString(panelStyle.Render(m.prompt.form.View()))
	}

	b.WriteString("\n\n")
	b.WriteString(m.notificationView())
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.hint()))

	return b.String()
}

func (m appModel) headerView() string {
	var conn string
	switch m.snap.Connection {
	case transport.StateOpen:
		conn = connectedStyle.Render("● connected")
	case transport.StateConnecting:
		conn = connectingStyle.Render("◌ connecting")
	default:
		conn = disconnectedStyle.Render("○ disconnected")
	}

	parts := []string{titleStyle.Render("gsmctl"), conn}
	if m.snap.Mode != "" {
		parts = append(parts, dimStyle.Render("mode "+string(m.snap.Mode)))
	}
	lang := "EN"
	if m.snap.Language == gsmdir.LanguageArabic {
		lang = "AR"
	}
	parts = append(parts, dimStyle.Render(lang))

	if m.busy() {
		parts = append(parts, spinnerStyle.Render(spinnerFrames[m.spinnerIdx%len(spinnerFrames)]))
	}
	if m.snap.Caller != "" {
		parts = append(parts, callerStyle.Render("☎ "+m.snap.Caller))
	}

	return strings.Join(parts, "  ")
}

func (m appModel) tabsView() string {
	names := make([]string, 0, tabCount)
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if tab(i) == m.tab {
			names = append(names, tabActiveStyle.Render(label))
		} else {
			names = append(names, tabStyle.Render(label))
		}
	}
	return strings.Join(names, "  ")
}

func (m appModel) tabView() string {
	switch m.tab {
	case tabStatus:
		return m.statusView()
	case tabInbox:
		return m.inboxView()
	case tabCompose:
		return m.composeView()
	case tabUSSD:
		return m.ussdView()
	case tabCalls:
		return m.callsView()
	case tabActivity:
		return m.activityView()
	default:
		return renderMarkdown(helpMarkdown)
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func (m appModel) statusView() string {
	st, cfg := m.snap.Status, m.snap.Config

	rows := []string{
		row("Wi-Fi", st.WifiStatus),
		row("IP address", st.IPAddress),
		row("SIM", st.SimStatus),
		row("Signal", st.SignalQuality),
		row("Operator", st.NetworkOperator),
		row("Phone number", st.SimPhoneNumber),
		row("SIM PIN", st.SimPinStatus),
		"",
		row("Server host", cfg.ServerHost),
		row("Server port", cfg.ServerPort),
		row("Server user", cfg.ServerUser),
		row("AP password", dimStyle.Render(cfg.APPasswordPlaceholder())),
		row("Saved PIN", dimStyle.Render(cfg.SimPinPlaceholder())),
	}

	return strings.Join(rows, "\n")
}

func (m appModel) inboxView() string {
	if d := m.snap.Detail; d != nil {
		head := fmt.Sprintf("#%d  %s  %s", d.Index, d.Sender, dimStyle.Render(d.Timestamp))
		return panelStyle.Render(head + "\n\n" + d.Body)
	}

	view := m.snap.Inbox
	if text, ok := inboxPlaceholders[view.Placeholder]; ok && len(view.Entries) == 0 {
		return dimStyle.Render(text)
	}

	width := max(m.width, 60)
	lines := make([]string, 0, len(view.Entries)+1)
	for i, e := range view.Entries {
		line := fmt.Sprintf("%4d  %s  %s  %s", e.Index, pad(e.Sender, 16), pad(e.Timestamp, 20), e.Preview)
		line = fit(line, width-2)
		switch {
		case i == m.inboxCursor:
			line = selectedStyle.Render("› " + line)
		case e.Unread:
			line = unreadStyle.Render("  " + line)
		default:
			line = "  " + line
		}
		lines = append(lines, line)
	}
	if view.Loading {
		lines = append(lines, dimStyle.Render(inboxPlaceholders[inbox.PlaceholderLoading]))
	}

	return strings.Join(lines, "\n")
}

func (m appModel) composeView() string {
	res := m.snap.Compose.Segments
	counter := fmt.Sprintf("%d chars · %d segment(s) · %s · %d left",
		res.Chars, res.Segments, res.Encoding, res.Remaining())
	if m.snap.Loading.SMSSend {
		counter += "  " + spinnerStyle.Render("sending")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.inputView("To", fieldNumber),
		m.inputView("Message", fieldMessage),
		dimStyle.Render(counter),
	)
}

func (m appModel) inputView(label string, f field) string {
	border := disabledBorder
	if m.focus == f {
		border = focusedBorder
	}
	width := max(min(m.width-4, 72), 30)
	return labelStyle.Render(label) + "\n" + border.Width(width).Render(m.inputs[f].View())
}

func (m appModel) ussdView() string {
	u := m.snap.Ussd
	aff := m.snap.Affordances

	var parts []string
	if u.LastMessage != "" {
		msg := u.LastMessage
		style := ussdStyle
		if u.Direction == ussd.RTL {
			style = style.Align(lipgloss.Right)
		}
		parts = append(parts, style.Render(msg))
	}

	switch {
	case m.snap.Loading.USSD || m.snap.Loading.USSDReply:
		parts = append(parts, spinnerStyle.Render("waiting for the network"))
	case aff.ReplyUSSD:
		parts = append(parts, m.inputView("Reply", fieldUSSD))
	case aff.InitiateUSSD:
		parts = append(parts, m.inputView("Code", fieldUSSD))
	}

	if !m.snap.Affordances.StationControls {
		parts = append(parts, dimStyle.Render("Not available until the gateway is connected."))
	}

	return strings.Join(parts, "\n\n")
}

func (m appModel) callsView() string {
	lines := make([]string, 0, len(device.Conditions)+2)
	for i, c := range device.Conditions {
		state := dimStyle.Render(session.Unknown)
		if r, ok := m.snap.Forwarding[c]; ok {
			state = "off"
			if r.Active {
				state = "→ " + r.Number
			}
		}
		line := pad(conditionNames[c], 16) + state
		if i == m.fwdCursor {
			line = selectedStyle.Render("› " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}

	if m.snap.Loading.Forwarding {
		lines = append(lines, spinnerStyle.Render("querying"))
	}
	if m.focus == fieldForwardNumber {
		lines = append(lines, "", m.inputView("Forward "+conditionNames[device.Conditions[m.fwdCursor]]+" to", fieldForwardNumber))
	}

	return strings.Join(lines, "\n")
}

func (m appModel) activityView() string {
	lines := m.snap.Activity
	if len(lines) == 0 {
		return dimStyle.Render("No device log yet.")
	}

	limit := len(lines)
	if m.height > 10 {
		limit = min(limit, m.height-10)
	}

	out := make([]string, 0, limit)
	for _, l := range lines[len(lines)-limit:] {
		out = append(out, l.String())
	}
	return strings.Join(out, "\n")
}

func (m appModel) setupView() string {
	wifi := m.snap.WiFi

	lines := []string{titleStyle.Render("Wi-Fi setup"), ""}
	switch {
	case m.snap.Loading.WiFiScan:
		lines = append(lines, spinnerStyle.Render("scanning"))
	case len(wifi.Networks) > 0:
		for i, n := range wifi.Networks {
			lock := " "
			if n.Secure {
				lock = "🔒"
			}
			line := fmt.Sprintf("%s %s %s", signalBars(n.Bars()), lock, n.SSID)
			if i == m.wifiCursor {
				line = selectedStyle.Render("› " + line)
			} else {
				line = "  " + line
			}
			lines = append(lines, line)
		}
	case wifi.Message != "":
		lines = append(lines, dimStyle.Render(wifi.Message))
	default:
		lines = append(lines, dimStyle.Render("Press r to scan for networks."))
	}

	if m.focus == fieldSSID || m.focus == fieldWiFiPassword {
		lines = append(lines, "",
			m.inputView("Network", fieldSSID),
			m.inputView("Password", fieldWiFiPassword),
		)
	}

	return strings.Join(lines, "\n")
}

func (m appModel) pinView() string {
	status := "Enter the SIM PIN to unlock the modem."
	if m.snap.Loading.PIN {
		status = spinnerStyle.Render("checking PIN")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("SIM locked"),
		"",
		status,
		m.inputView("PIN", fieldPIN),
	)
}

func (m appModel) notificationView() string {
	if m.flash != "" {
		return severityStyles[notify.Warning].Render(m.flash)
	}

	n := m.snap.Notification
	if n == nil {
		return ""
	}
	return severityStyles[n.Severity].Render(n.Text)
}

func (m appModel) hint() string {
	switch {
	case m.prompt != nil:
		return "enter confirm · esc cancel"
	case m.snap.Affordances.WiFiSetup:
		if m.focus != fieldNone {
			return "enter next · esc back"
		}
		return "r scan · enter choose · s manual · b reboot · q quit"
	case m.snap.Affordances.PinEntry:
		return "enter submit · ctrl+c quit"
	case m.focus != fieldNone:
		return "enter submit · esc back"
	}

	switch m.tab {
	case tabStatus:
		return "r refresh · c settings · e edit · l language · b reboot · ? help"
	case tabInbox:
		if m.snap.Detail != nil {
			return "esc close · d delete"
		}
		return "r reload · enter read · d delete · ? help"
	case tabCompose:
		return "enter write · m message · ? help"
	case tabUSSD:
		if m.snap.Affordances.CancelUSSD {
			return "enter reply · x cancel"
		}
		return "enter dial · ? help"
	case tabCalls:
		return "f query · e forward · x disable · ? help"
	}
	return "tab next · q quit"
}
