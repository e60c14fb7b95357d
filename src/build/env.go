package build

import (
	"path/filepath"

	"github.com/trustedanalytics/platform-parent/src/catalog"
	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/source"
)

// Env holds the collaborators shared by every builder of a run. It is
// built once before the workers start and never mutated afterwards.
type Env struct {
	Settings config.Settings

	// Workspace is the absolute parent of all project workspaces.
	Workspace string

	// ConfigDir resolves relative extra_files.
	ConfigDir string

	Runner  Runner
	Fetcher source.Fetcher
	Catalog *catalog.Client
}

// WorkspaceDir returns the persistent workspace of a project.
func (e *Env) WorkspaceDir(name string) string {
	return filepath.Join(e.Workspace, name)
}

// LogDir holds the per-project build and error logs.
func (e *Env) LogDir() string {
	return filepath.Join(e.Workspace, "logs")
}

// Resolve joins a config-relative path onto ConfigDir.
func (e *Env) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || e.ConfigDir == "" {
		return p
	}
	return filepath.Join(e.ConfigDir, p)
}
