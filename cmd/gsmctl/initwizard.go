package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/germanamz/gsmgate/pkg/config"
	"github.com/germanamz/gsmgate/pkg/gsmdir"
	"github.com/germanamz/gsmgate/pkg/inbox"
)

// errInitCancelled is returned when the user declines to overwrite.
var errInitCancelled = errors.New("init cancelled")

// initAnswers is the wizard's working model. Ports stay strings so the form
// can edit them directly.
type initAnswers struct {
	Host     string
	WSPort   string
	HTTPPort string
	Variant  string
	Language string
	Broker   string
}

func defaultAnswers() initAnswers {
	def := config.Default()
	return initAnswers{
		Host:     def.Device.Host,
		WSPort:   strconv.Itoa(def.Device.WSPort),
		HTTPPort: strconv.Itoa(def.Device.HTTPPort),
		Variant:  def.Inbox.Variant,
		Language: gsmdir.LanguageEnglish,
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dirPath := fs.String("dir", gsmdir.DefaultRoot(), "path to the gsmctl directory")
	host := fs.String("host", "", "gateway host (non-interactive)")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d := gsmdir.New(*dirPath)
	answers := defaultAnswers()

	switch {
	case *host != "":
		if d.HasConfig() && !*force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", d.ConfigPath())
		}
		answers.Host = *host
	default:
		if d.HasConfig() && !*force {
			overwrite := false
			if err := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("%s already exists. Overwrite?", d.ConfigPath())).
					Value(&overwrite),
			)).Run(); err != nil {
				return err
			}
			if !overwrite {
				return errInitCancelled
			}
		}
		if err := initForm(&answers).Run(); err != nil {
			return err
		}
	}

	if err := writeInit(d, answers); err != nil {
		return err
	}

	fmt.Printf("Initialized %s\n", d.Root())
	fmt.Println("Run 'gsmctl' to connect, or 'gsmctl simulate' to try it without hardware.")

	return nil
}

func initForm(a *initAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway host").
				Description("192.168.4.1 while the gateway runs its setup access point").
				Value(&a.Host).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("host is required")
					}
					return nil
				}),
			huh.NewInput().Title("WebSocket port").Value(&a.WSPort).Validate(requiredPort),
			huh.NewInput().Title("HTTP port").Value(&a.HTTPPort).Validate(requiredPort),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Inbox listing").
				Options(
					huh.NewOption("Detect automatically", string(inbox.VariantAuto)),
					huh.NewOption("Streaming (one frame per message)", string(inbox.VariantStreaming)),
					huh.NewOption("Batch (whole list at once)", string(inbox.VariantBatch)),
				).
				Value(&a.Variant),
			huh.NewSelect[string]().
				Title("Language").
				Options(
					huh.NewOption("English", gsmdir.LanguageEnglish),
					huh.NewOption("العربية", gsmdir.LanguageArabic),
				).
				Value(&a.Language),
			huh.NewInput().
				Title("MQTT broker").
				Description("Optional, e.g. tcp://localhost:1883. Leave empty to disable the mirror.").
				Value(&a.Broker),
		),
	)
}

func requiredPort(s string) error {
	if s == "" {
		return errors.New("port is required")
	}
	return validPortText(s)
}

// configFromAnswers builds a validated configuration from the wizard answers.
func configFromAnswers(a initAnswers) (config.Config, error) {
	cfg := config.Default()
	cfg.Device.Host = strings.TrimSpace(a.Host)
	cfg.Inbox.Variant = a.Variant
	cfg.MQTT.Broker = strings.TrimSpace(a.Broker)

	var err error
	if cfg.Device.WSPort, err = strconv.Atoi(a.WSPort); err != nil {
		return config.Config{}, fmt.Errorf("ws port: %w", err)
	}
	if cfg.Device.HTTPPort, err = strconv.Atoi(a.HTTPPort); err != nil {
		return config.Config{}, fmt.Errorf("http port: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

// writeInit creates the directory layout, the config file and the saved
// language preference.
func writeInit(d gsmdir.Dir, a initAnswers) error {
	cfg, err := configFromAnswers(a)
	if err != nil {
		return err
	}

	if err := gsmdir.EnsureStructure(d); err != nil {
		return err
	}
	if err := cfg.Save(d.ConfigPath()); err != nil {
		return err
	}

	return gsmdir.SavePrefs(d, gsmdir.Prefs{Language: a.Language})
}
