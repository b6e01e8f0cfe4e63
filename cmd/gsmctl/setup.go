package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/germanamz/gsmgate/pkg/config"
	"github.com/germanamz/gsmgate/pkg/gsmdir"
	"github.com/germanamz/gsmgate/pkg/inbox"
	"github.com/germanamz/gsmgate/pkg/mirror"
	"github.com/germanamz/gsmgate/pkg/session"
	"github.com/germanamz/gsmgate/pkg/transport"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

// httpTimeout bounds each one-shot HTTP action.
const httpTimeout = 15 * time.Second

// setupOptions are the flags shared by every command that talks to a
// gateway.
type setupOptions struct {
	dir        string
	configPath string
	envFile    string
	host       string
}

func (o *setupOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.dir, "dir", gsmdir.DefaultRoot(), "path to the gsmctl directory")
	fs.StringVar(&o.configPath, "config", "", "path to configuration file (default: <dir>/config.yaml)")
	fs.StringVar(&o.envFile, "env", "", "path to .env file (default: <dir>/.env, ignored if missing)")
	fs.StringVar(&o.host, "host", "", "gateway host (overrides device.host)")
}

type environment struct {
	dir gsmdir.Dir
	cfg config.Config
}

// load reads .env and the configuration. A missing default config file
// falls back to the built-in defaults.
func (o setupOptions) load() (environment, error) {
	d := gsmdir.New(o.dir)

	envFile := o.envFile
	if envFile == "" {
		envFile = d.EnvPath()
	}
	if err := loadDotEnv(envFile); err != nil {
		return environment{}, err
	}

	cfg, err := loadConfig(resolveConfigPath(o.configPath, d), o.configPath != "")
	if err != nil {
		return environment{}, err
	}
	if o.host != "" {
		cfg.Device.Host = o.host
	}
	if err := cfg.Validate(); err != nil {
		return environment{}, err
	}

	return environment{dir: d, cfg: cfg}, nil
}

// loadConfig reads path. Only an explicitly requested file must exist.
func loadConfig(path string, explicit bool) (config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}

	return config.Config{}, err
}

// openLog opens the log file under local/. The TUI owns stdout, so logs never
// go to the terminal.
func openLog(d gsmdir.Dir, level string) (*os.File, *slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	if err := gsmdir.EnsureStructure(d); err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(d.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}

	return f, slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lvl})), nil
}

// languageOf prefers the configured language over the saved preference.
func languageOf(cfg config.Config, prefs gsmdir.Prefs) string {
	if gsmdir.ValidLanguage(cfg.Language) {
		return cfg.Language
	}
	return prefs.Language
}

// newSession wires the transport and HTTP client described by cfg into a
// device session.
func newSession(cfg config.Config, language string, log *slog.Logger) (*session.Session, error) {
	variant, err := inbox.ParseVariant(cfg.Inbox.Variant)
	if err != nil {
		return nil, fmt.Errorf("config: inbox: %w", err)
	}

	reconnect, maxDelay := cfg.Transport.Delays()
	alert, info := cfg.Notify.Durations()

	tr := transport.New(transport.Options{
		URL:               cfg.Device.WebSocketURL(),
		ReconnectDelay:    reconnect,
		MaxReconnectDelay: maxDelay,
		ReadLimit:         cfg.Transport.ReadLimit,
		Logger:            log,
	})

	return session.New(session.Options{
		Transport:     tr,
		Web:           webapi.New(cfg.Device.HTTPBaseURL(), &http.Client{Timeout: httpTimeout}),
		InboxVariant:  variant,
		AlertDuration: alert,
		InfoDuration:  info,
		MaxLogLines:   cfg.Log.MaxLines,
		Language:      language,
		Logger:        log,
	}), nil
}

// startMirror publishes session events to the configured MQTT broker. A
// broker that cannot be reached is logged and skipped. The returned function
// stops the mirror.
func startMirror(ctx context.Context, cfg config.MQTTConfig, sess *session.Session, log *slog.Logger) func() {
	if !cfg.Enabled() {
		return func() {}
	}

	client, err := mirror.Dial(ctx, mirror.ClientOptions{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
		Prefix:   cfg.TopicPrefix,
		QoS:      byte(cfg.QoS), //nolint:gosec // validated to 0..2
		Logger:   log,
	})
	if err != nil {
		log.Warn("mqtt mirror disabled", "broker", cfg.Broker, "error", err)
		return func() {}
	}

	m := mirror.New(client, mirror.Options{Prefix: cfg.TopicPrefix, QoS: byte(cfg.QoS), Logger: log}) //nolint:gosec // validated to 0..2
	sub := sess.Bus().Subscribe(256, mirror.Kinds...)

	mctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Run(mctx, sub); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("mqtt mirror stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
		sess.Bus().Unsubscribe(sub)
		client.Close()
	}
}

// loadPrefsOrDefault reads the saved preferences, logging and ignoring a
// damaged file.
func loadPrefsOrDefault(env environment, log *slog.Logger) gsmdir.Prefs {
	prefs, err := gsmdir.LoadPrefs(env.dir)
	if err != nil {
		log.Warn("preferences ignored", "error", err)
	}
	return prefs
}
