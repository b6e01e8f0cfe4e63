package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

// prompt is a huh form shown over the current tab. onSubmit runs once the
// form completes and returns the action to perform, if any.
type prompt struct {
	form     *huh.Form
	onSubmit func() tea.Cmd
}

func newPrompt(form *huh.Form, width int, onSubmit func() tea.Cmd) *prompt {
	form.WithShowHelp(false).WithWidth(width)
	return &prompt{form: form, onSubmit: onSubmit}
}

// confirmPrompt asks a yes/no question and runs onYes on confirmation.
func confirmPrompt(title, description string, width int, onYes tea.Cmd) *prompt {
	var yes bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&yes),
	))

	return newPrompt(form, width, func() tea.Cmd {
		if !yes {
			return nil
		}
		return onYes
	})
}

// settingsPrompt edits the gateway's server settings. Secret fields start
// empty; leaving them empty keeps the stored value.
func settingsPrompt(current session.ConfigDisplay, width int, onSave func(webapi.Settings) tea.Cmd) *prompt {
	settings := webapi.Settings{
		ServerHost: current.ServerHost,
		ServerPort: current.ServerPort,
		ServerUser: current.ServerUser,
	}
	if settings.ServerHost == session.Unknown {
		settings.ServerHost = ""
	}
	if settings.ServerPort == session.Unknown {
		settings.ServerPort = ""
	}
	if settings.ServerUser == session.Unknown {
		settings.ServerUser = ""
	}

	save := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Server host").Value(&settings.ServerHost),
			huh.NewInput().Title("Server port").Value(&settings.ServerPort).Validate(validPortText),
			huh.NewInput().Title("Server user").Value(&settings.ServerUser),
			huh.NewInput().Title("Server password").EchoMode(huh.EchoModePassword).Value(&settings.ServerPassword),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("AP password").
				Placeholder(current.APPasswordPlaceholder()).
				EchoMode(huh.EchoModePassword).
				Value(&settings.APPassword),
			huh.NewInput().
				Title("SIM PIN").
				Placeholder(current.SimPinPlaceholder()).
				EchoMode(huh.EchoModePassword).
				Validate(optionalPIN).
				Value(&settings.SimPIN),
			huh.NewConfirm().Title("Save to the gateway?").Value(&save),
		),
	)

	return newPrompt(form, width, func() tea.Cmd {
		if !save {
			return nil
		}
		return onSave(settings)
	})
}

func optionalPIN(s string) error {
	if s == "" {
		return nil
	}
	return webapi.ValidatePIN(s)
}

// openPrompt shows p and hands it focus.
func (m appModel) openPrompt(p *prompt) (tea.Model, tea.Cmd) {
	m.focusField(fieldNone)
	m.prompt = p
	return m, p.form.Init()
}

// updatePrompt feeds msg to the open form and closes it once it finishes.
func (m appModel) updatePrompt(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.prompt.form.Update(msg)
	if f, ok := next.(*huh.Form); ok {
		m.prompt.form = f
	}

	switch m.prompt.form.State {
	case huh.StateCompleted:
		p := m.prompt
		m.prompt = nil
		return m, p.onSubmit()
	case huh.StateAborted:
		m.prompt = nil
		return m, nil
	}

	return m, cmd
}
