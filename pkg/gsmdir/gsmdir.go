// Package gsmdir resolves the paths of the gsmctl state directory: the
// configuration file, the optional .env file and the local/ runtime state
// (preferences and the log file).
package gsmdir

import (
	"os"
	"path/filepath"
)

// Dir is a value object that resolves paths within the state directory.
type Dir struct {
	root string
}

// New creates a Dir rooted at root, made absolute. No I/O is performed; use
// EnsureStructure to create the layout.
func New(root string) Dir {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	return Dir{root: abs}
}

// DefaultRoot is <user config dir>/gsmctl, or .gsmctl in the working
// directory when the user config dir is unknown.
func DefaultRoot() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".gsmctl"
	}

	return filepath.Join(base, "gsmctl")
}

// Root returns the absolute path of the directory.
func (d Dir) Root() string { return d.root }

// ConfigPath returns the path to the config file.
func (d Dir) ConfigPath() string { return filepath.Join(d.root, "config.yaml") }

// EnvPath returns the path to the optional .env file.
func (d Dir) EnvPath() string { return filepath.Join(d.root, ".env") }

// LocalDir returns the path to the runtime state directory.
func (d Dir) LocalDir() string { return filepath.Join(d.root, "local") }

// PrefsPath returns the path to the persisted preferences.
func (d Dir) PrefsPath() string { return filepath.Join(d.root, "local", "prefs.yaml") }

// LogPath returns the path to the log file.
func (d Dir) LogPath() string { return filepath.Join(d.root, "local", "gsmctl.log") }

// Exists reports whether the root directory exists.
func (d Dir) Exists() bool {
	info, err := os.Stat(d.root)

	return err == nil && info.IsDir()
}

// HasConfig reports whether the config file exists.
func (d Dir) HasConfig() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
