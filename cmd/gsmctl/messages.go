package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/germanamz/gsmgate/pkg/gsmdir"
	"github.com/germanamz/gsmgate/pkg/session"
)

// snapshotMsg delivers fresh session state from the bridge goroutine.
type snapshotMsg struct {
	snap  session.Snapshot
	kinds []session.EventKind // Events folded into this snapshot.
}

// programReadyMsg passes the *tea.Program to the model so it can start the bridge.
type programReadyMsg struct {
	program *tea.Program
}

// startedMsg reports the outcome of Session.Start.
type startedMsg struct {
	err error
}

// actionDoneMsg is returned by the tea.Cmd that ran a user action. Failures
// are already shown as notifications by the session.
type actionDoneMsg struct {
	err error
}

// tickMsg drives the spinner while a request is outstanding.
type tickMsg time.Time

// prefsSavedMsg reports the outcome of writing the preferences file.
type prefsSavedMsg struct {
	prefs gsmdir.Prefs
	err   error
}
