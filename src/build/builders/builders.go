// Package builders holds one Builder per project kind. Importing it
// registers every kind with build.Default.
package builders

import (
	"context"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/config"
)

func init() {
	build.Register("java", newJava)
	build.Register("go", newGo)
	build.Register("console", newConsole)
	build.Register("python", newPython)
	build.Register("tool", newTool)
	build.Register("universal", newUniversal)
	build.Register("gearpump", newGearpump)
	build.Register("atk", newAtk)
	build.Register("release", newRelease)
}

// gitSource is embedded by every builder that fetches with git.
type gitSource struct {
	p   config.Project
	env *build.Env
}

func (s *gitSource) Fetch(ctx context.Context) (build.Fetched, error) {
	return build.GitFetch(ctx, s.env, s.p)
}

func (s *gitSource) workspace() string {
	return s.env.WorkspaceDir(s.p.Name)
}

// items returns the configured archive contents or fallback.
func (s *gitSource) items(fallback ...string) []string {
	if len(s.p.Items) > 0 {
		return s.p.Items
	}
	return fallback
}
