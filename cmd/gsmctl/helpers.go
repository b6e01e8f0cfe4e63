package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/joho/godotenv"
	"github.com/mattn/go-runewidth"

	"github.com/germanamz/gsmgate/pkg/gsmdir"
)

// spinnerFrames are braille characters for smooth animation.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// mdRenderer renders markdown to terminal-formatted output.
var mdRenderer *glamour.TermRenderer

func initMarkdownRenderer(width int) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	mdRenderer = r
}

// renderMarkdown converts markdown text to terminal-formatted output.
func renderMarkdown(text string) string {
	if mdRenderer == nil {
		return text
	}
	out, err := mdRenderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// fit shortens s to at most width terminal columns, appending "…" when cut.
// Newlines are replaced with spaces for single-line display.
func fit(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// pad fits s into exactly width columns.
func pad(s string, width int) string {
	return runewidth.FillRight(fit(s, width), width)
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfigPath returns the explicit path, or the config file inside d.
func resolveConfigPath(explicit string, d gsmdir.Dir) string {
	if explicit != "" {
		return explicit
	}
	return d.ConfigPath()
}

// signalBars renders a 0-4 signal indicator.
func signalBars(n int) string {
	n = min(max(n, 0), 4)
	return strings.Repeat("▮", n) + strings.Repeat("▯", 4-n)
}

// validPortText accepts an empty string or a TCP port number.
func validPortText(s string) error {
	if s == "" {
		return nil
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
