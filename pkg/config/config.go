// Package config loads and validates the gsmctl configuration file.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/germanamz/gsmgate/pkg/inbox"
)

// Config is the top-level configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Transport TransportConfig `yaml:"transport"`
	Inbox     InboxConfig     `yaml:"inbox"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Language  string          `yaml:"language"` // Empty defers to the saved preference.
}

// DeviceConfig locates the gateway.
type DeviceConfig struct {
	Host     string `yaml:"host"`
	WSPort   int    `yaml:"ws_port"`
	HTTPPort int    `yaml:"http_port"`
	WSPath   string `yaml:"ws_path"`
}

// TransportConfig tunes the duplex channel.
type TransportConfig struct {
	ReconnectDelay    string `yaml:"reconnect_delay"`     // Duration string, e.g. "5s".
	MaxReconnectDelay string `yaml:"max_reconnect_delay"` // "0s" keeps the delay fixed.
	ReadLimit         int64  `yaml:"read_limit"`          // Bytes per frame.
}

// InboxConfig selects how the inbox listing is received.
type InboxConfig struct {
	Variant string `yaml:"variant"` // auto, streaming or batch.
}

// NotifyConfig holds notification display durations.
type NotifyConfig struct {
	ErrorDuration string `yaml:"error_duration"`
	InfoDuration  string `yaml:"info_duration"`
}

// LogConfig controls the log file and the activity panel.
type LogConfig struct {
	Level    string `yaml:"level"`
	MaxLines int    `yaml:"max_lines"`
}

// MQTTConfig enables the optional event mirror. An empty broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"` //nolint:gosec // configuration field, not a hardcoded secret
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// Default returns the reference configuration for a gateway in AP mode.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			Host:     "192.168.4.1",
			WSPort:   81,
			HTTPPort: 80,
			WSPath:   "/",
		},
		Transport: TransportConfig{
			ReconnectDelay:    "5s",
			MaxReconnectDelay: "0s",
			ReadLimit:         64 << 10,
		},
		Inbox:  InboxConfig{Variant: string(inbox.VariantAuto)},
		Notify: NotifyConfig{ErrorDuration: "6s", InfoDuration: "4s"},
		Log:    LogConfig{Level: "info", MaxLines: 150},
		MQTT:   MQTTConfig{ClientID: "gsmctl", TopicPrefix: "gsmgate", QoS: 1},
	}
}

// LoadConfig reads a YAML file over the defaults. Environment variables
// referenced as ${VAR} or $VAR are expanded before parsing, so broker
// credentials can live in a .env file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}

	return Parse(data)
}

// LoadConfigRaw reads a YAML file over the defaults without expanding
// environment references, so an editor can write them back unchanged.
func LoadConfigRaw(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}

	return data, nil
}

// Save writes the configuration to path.
func (c Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: save: %w", err)
	}

	return nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Device.Host) == "" {
		return fmt.Errorf("config: device host is required")
	}
	if err := validPort("device ws_port", c.Device.WSPort); err != nil {
		return err
	}
	if err := validPort("device http_port", c.Device.HTTPPort); err != nil {
		return err
	}
	if c.Device.WSPath != "" && !strings.HasPrefix(c.Device.WSPath, "/") {
		return fmt.Errorf("config: device ws_path %q must start with /", c.Device.WSPath)
	}

	for name, v := range map[string]string{
		"transport reconnect_delay":     c.Transport.ReconnectDelay,
		"transport max_reconnect_delay": c.Transport.MaxReconnectDelay,
		"notify error_duration":         c.Notify.ErrorDuration,
		"notify info_duration":          c.Notify.InfoDuration,
	} {
		if _, err := parseDuration(name, v); err != nil {
			return err
		}
	}
	if c.Transport.ReadLimit < 0 {
		return fmt.Errorf("config: transport read_limit must not be negative")
	}

	if _, err := inbox.ParseVariant(c.Inbox.Variant); err != nil {
		return fmt.Errorf("config: inbox: %w", err)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.MaxLines < 0 {
		return fmt.Errorf("config: log max_lines must not be negative")
	}

	if c.MQTT.Enabled() {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("config: mqtt qos %d must be 0, 1 or 2", c.MQTT.QoS)
		}
		if c.MQTT.TopicPrefix == "" {
			return fmt.Errorf("config: mqtt topic_prefix is required when a broker is set")
		}
	}

	return nil
}

// WebSocketURL is the duplex channel endpoint.
func (d DeviceConfig) WebSocketURL() string {
	path := d.WSPath
	if path == "" {
		path = "/"
	}

	return "ws://" + net.JoinHostPort(d.Host, strconv.Itoa(d.WSPort)) + path
}

// HTTPBaseURL is the base of the one-shot HTTP actions.
func (d DeviceConfig) HTTPBaseURL() string {
	if d.HTTPPort == 80 {
		return "http://" + d.Host
	}

	return "http://" + net.JoinHostPort(d.Host, strconv.Itoa(d.HTTPPort))
}

// Delays returns the parsed reconnect delays. Unparseable values yield zero,
// which the transport treats as its default.
func (t TransportConfig) Delays() (reconnect, maxDelay time.Duration) {
	reconnect, _ = parseDuration("", t.ReconnectDelay)
	maxDelay, _ = parseDuration("", t.MaxReconnectDelay)

	return reconnect, maxDelay
}

// Durations returns the parsed notification durations.
func (n NotifyConfig) Durations() (alert, info time.Duration) {
	alert, _ = parseDuration("", n.ErrorDuration)
	info, _ = parseDuration("", n.InfoDuration)

	return alert, info
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
	}
}

func validPort(name string, p int) error {
	if p < 1 || p > 65535 {
		return fmt.Errorf("config: %s %d is out of range", name, p)
	}

	return nil
}

// parseDuration accepts an empty string as zero.
func parseDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", name)
	}

	return d, nil
}
