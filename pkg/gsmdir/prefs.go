package gsmdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Supported languages.
const (
	LanguageEnglish = "en"
	LanguageArabic  = "ar"
)

// Prefs are the user preferences kept across runs.
type Prefs struct {
	// Language keeps the key the gateway's web frontend stores it under.
	Language string `yaml:"gsm_gateway_lang"`
}

// ValidLanguage reports whether lang is supported.
func ValidLanguage(lang string) bool {
	return lang == LanguageEnglish || lang == LanguageArabic
}

// LoadPrefs reads the preferences. A missing file yields zero Prefs; an
// unsupported language is dropped.
func LoadPrefs(d Dir) (Prefs, error) {
	data, err := os.ReadFile(d.PrefsPath())
	if errors.Is(err, os.ErrNotExist) {
		return Prefs{}, nil
	}
	if err != nil {
		return Prefs{}, fmt.Errorf("gsmdir: read prefs: %w", err)
	}

	var p Prefs
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prefs{}, fmt.Errorf("gsmdir: parse prefs: %w", err)
	}
	if !ValidLanguage(p.Language) {
		p.Language = ""
	}

	return p, nil
}

// SavePrefs writes the preferences, creating local/ if needed.
func SavePrefs(d Dir, p Prefs) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("gsmdir: marshal prefs: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(d.PrefsPath()), 0o750); err != nil {
		return fmt.Errorf("gsmdir: create local dir: %w", err)
	}

	if err := os.WriteFile(d.PrefsPath(), data, 0o600); err != nil {
		return fmt.Errorf("gsmdir: write prefs: %w", err)
	}

	return nil
}
