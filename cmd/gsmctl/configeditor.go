package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/germanamz/gsmgate/pkg/config"
	"github.com/germanamz/gsmgate/pkg/gsmdir"
	"github.com/germanamz/gsmgate/pkg/inbox"
)

// editorConfig is the editor working model. Numbers stay strings so the form
// can bind them directly.
type editorConfig struct {
	Host              string
	WSPort            string
	HTTPPort          string
	WSPath            string
	ReconnectDelay    string
	MaxReconnectDelay string
	Variant           string
	ErrorDuration     string
	InfoDuration      string
	LogLevel          string
	MaxLines          string
	Broker            string
	ClientID          string
	TopicPrefix       string
	QoS               string
	Username          string
	Password          string //nolint:gosec // env var reference, not a secret
}

// runConfigEditor is the entry point: load → edit → validate → diff → save.
func runConfigEditor(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	dirPath := fs.String("dir", gsmdir.DefaultRoot(), "path to the gsmctl directory")
	configPath := fs.String("config", "", "path to configuration file (default: <dir>/config.yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resolved := resolveConfigPath(*configPath, gsmdir.New(*dirPath))

	before, err := config.LoadConfigRaw(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s not found (run 'gsmctl init' first)", resolved)
		}
		return err
	}

	ec := configToEditor(before)

	var after config.Config
	for {
		if err := editorForm(&ec).Run(); err != nil {
			return err
		}

		after, err = editorToConfig(before, ec)
		if err == nil {
			err = after.Validate()
		}
		if err == nil {
			break
		}
		fmt.Fprintf(os.Stderr, "Validation error: %v\nReturning to the editor.\n", err)
	}

	diff, err := configDiff(resolved, before, after)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Println("No changes.")
		return nil
	}
	fmt.Print(diff)

	save := true
	if err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title("Save these changes?").Value(&save),
	)).Run(); err != nil {
		return err
	}
	if !save {
		fmt.Println("Discarded.")
		return nil
	}

	if err := after.Save(resolved); err != nil {
		return err
	}
	fmt.Printf("Config saved to %s\n", resolved)

	return nil
}

func configToEditor(c config.Config) editorConfig {
	return editorConfig{
		Host:              c.Device.Host,
		WSPort:            strconv.Itoa(c.Device.WSPort),
		HTTPPort:          strconv.Itoa(c.Device.HTTPPort),
		WSPath:            c.Device.WSPath,
		ReconnectDelay:    c.Transport.ReconnectDelay,
		MaxReconnectDelay: c.Transport.MaxReconnectDelay,
		Variant:           c.Inbox.Variant,
		ErrorDuration:     c.Notify.ErrorDuration,
		InfoDuration:      c.Notify.InfoDuration,
		LogLevel:          c.Log.Level,
		MaxLines:          strconv.Itoa(c.Log.MaxLines),
		Broker:            c.MQTT.Broker,
		ClientID:          c.MQTT.ClientID,
		TopicPrefix:       c.MQTT.TopicPrefix,
		QoS:               strconv.Itoa(c.MQTT.QoS),
		Username:          c.MQTT.Username,
		Password:          c.MQTT.Password,
	}
}

// editorToConfig applies the edited fields over base, keeping anything the
// editor does not expose.
func editorToConfig(base config.Config, ec editorConfig) (config.Config, error) {
	c := base

	ints := []struct {
		name string
		text string
		dst  *int
	}{
		{"ws port", ec.WSPort, &c.Device.WSPort},
		{"http port", ec.HTTPPort, &c.Device.HTTPPort},
		{"max lines", ec.MaxLines, &c.Log.MaxLines},
		{"qos", ec.QoS, &c.MQTT.QoS},
	}
	for _, f := range ints {
		n, err := strconv.Atoi(f.text)
		if err != nil {
			return config.Config{}, fmt.Errorf("%s: %q is not a number", f.name, f.text)
		}
		*f.dst = n
	}

	c.Device.Host = ec.Host
	c.Device.WSPath = ec.WSPath
	c.Transport.ReconnectDelay = ec.ReconnectDelay
	c.Transport.MaxReconnectDelay = ec.MaxReconnectDelay
	c.Inbox.Variant = ec.Variant
	c.Notify.ErrorDuration = ec.ErrorDuration
	c.Notify.InfoDuration = ec.InfoDuration
	c.Log.Level = ec.LogLevel
	c.MQTT.Broker = ec.Broker
	c.MQTT.ClientID = ec.ClientID
	c.MQTT.TopicPrefix = ec.TopicPrefix
	c.MQTT.Username = ec.Username
	c.MQTT.Password = ec.Password

	return c, nil
}

func editorForm(ec *editorConfig) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Gateway host").Value(&ec.Host),
			huh.NewInput().Title("WebSocket port").Value(&ec.WSPort).Validate(requiredPort),
			huh.NewInput().Title("WebSocket path").Value(&ec.WSPath),
			huh.NewInput().Title("HTTP port").Value(&ec.HTTPPort).Validate(requiredPort),
		).Title("Device"),
		huh.NewGroup(
			huh.NewInput().Title("Reconnect delay").Value(&ec.ReconnectDelay),
			huh.NewInput().Title("Max reconnect delay").Description("0s keeps the delay fixed").Value(&ec.MaxReconnectDelay),
			huh.NewSelect[string]().
				Title("Inbox listing").
				Options(
					huh.NewOption("auto", string(inbox.VariantAuto)),
					huh.NewOption("streaming", string(inbox.VariantStreaming)),
					huh.NewOption("batch", string(inbox.VariantBatch)),
				).
				Value(&ec.Variant),
		).Title("Connection"),
		huh.NewGroup(
			huh.NewInput().Title("Error notification duration").Value(&ec.ErrorDuration),
			huh.NewInput().Title("Info notification duration").Value(&ec.InfoDuration),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&ec.LogLevel),
			huh.NewInput().Title("Activity lines kept").Value(&ec.MaxLines),
		).Title("Display"),
		huh.NewGroup(
			huh.NewInput().Title("Broker").Description("Empty disables the mirror").Value(&ec.Broker),
			huh.NewInput().Title("Client ID").Value(&ec.ClientID),
			huh.NewInput().Title("Topic prefix").Value(&ec.TopicPrefix),
			huh.NewSelect[string]().Title("QoS").Options(huh.NewOptions("0", "1", "2")...).Value(&ec.QoS),
			huh.NewInput().Title("Username").Value(&ec.Username),
			huh.NewInput().Title("Password").Description("Use ${VAR} to read it from .env").Value(&ec.Password),
		).Title("MQTT mirror"),
	)
}

// configDiff returns a unified diff of the YAML encodings, or "" when they
// are equal.
func configDiff(path string, before, after config.Config) (string, error) {
	a, err := before.Marshal()
	if err != nil {
		return "", err
	}
	b, err := after.Marshal()
	if err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: path,
		ToFile:   path + " (edited)",
		Context:  3,
	})
}
