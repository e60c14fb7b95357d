package build

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout is the output tree of a run.
type Layout struct {
	Root string
}

// Dir returns the directory for archives of category c.
func (l Layout) Dir(c Category) string {
	return filepath.Join(l.Root, string(c))
}

// Prepare creates every category directory. It runs once before any
// worker starts.
func (l Layout) Prepare() error {
	for _, c := range Categories {
		if err := os.MkdirAll(l.Dir(c), 0o755); err != nil {
			return fmt.Errorf("build: preparing %s: %w", l.Dir(c), err)
		}
	}
	return nil
}
