package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/gsmgate/pkg/config"
	"github.com/germanamz/gsmgate/pkg/gsmdir"
)

func TestConfigFromAnswers(t *testing.T) {
	a := defaultAnswers()
	a.Host = " 10.0.0.5 "
	a.WSPort = "8081"
	a.HTTPPort = "8080"
	a.Variant = "streaming"
	a.Broker = "tcp://localhost:1883"

	cfg, err := configFromAnswers(a)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Device.Host)
	assert.Equal(t, 8081, cfg.Device.WSPort)
	assert.Equal(t, 8080, cfg.Device.HTTPPort)
	assert.Equal(t, "streaming", cfg.Inbox.Variant)
	assert.True(t, cfg.MQTT.Enabled())
}

func TestConfigFromAnswersDefaults(t *testing.T) {
	cfg, err := configFromAnswers(defaultAnswers())
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestConfigFromAnswersInvalid(t *testing.T) {
	a := defaultAnswers()
	a.WSPort = "port"
	_, err := configFromAnswers(a)
	require.Error(t, err)

	a = defaultAnswers()
	a.HTTPPort = "0"
	_, err = configFromAnswers(a)
	require.Error(t, err)

	a = defaultAnswers()
	a.Host = "  "
	_, err = configFromAnswers(a)
	require.Error(t, err)
}

func TestWriteInit(t *testing.T) {
	d := gsmdir.New(filepath.Join(t.TempDir(), "gsm"))
	a := defaultAnswers()
	a.Language = gsmdir.LanguageArabic

	require.NoError(t, writeInit(d, a))
	assert.True(t, d.HasConfig())

	cfg, err := config.LoadConfig(d.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, a.Host, cfg.Device.Host)

	prefs, err := gsmdir.LoadPrefs(d)
	require.NoError(t, err)
	assert.Equal(t, gsmdir.LanguageArabic, prefs.Language)
}

func TestRunInitNonInteractive(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gsm")

	require.NoError(t, runInit([]string{"-dir", root, "-host", "10.1.1.1"}))

	cfg, err := config.LoadConfig(gsmdir.New(root).ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", cfg.Device.Host)

	// A second run refuses to overwrite without -force.
	require.Error(t, runInit([]string{"-dir", root, "-host", "10.2.2.2"}))
	require.NoError(t, runInit([]string{"-dir", root, "-host", "10.2.2.2", "-force"}))
}
