package gsmdir

import (
	"fmt"
	"os"
)

// EnsureStructure creates the root and local/ directories if they are
// missing. It is idempotent.
func EnsureStructure(d Dir) error {
	if err := os.MkdirAll(d.LocalDir(), 0o750); err != nil {
		return fmt.Errorf("gsmdir: create local dir: %w", err)
	}

	return nil
}
