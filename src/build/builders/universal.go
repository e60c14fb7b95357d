package builders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/pack"
)

// universalBuilder runs the project's own pack.sh and ships the single
// <name>*.zip it leaves in the workspace.
type universalBuilder struct {
	gitSource
}

func newUniversal(p config.Project, env *build.Env) build.Builder {
	return &universalBuilder{gitSource{p: p, env: env}}
}

func (b *universalBuilder) Category() build.Category { return build.Apps }

// Build removes archives left by earlier runs, since the workspace is
// reused, then runs pack.sh.
func (b *universalBuilder) Build(ctx context.Context) error {
	stale, err := filepath.Glob(b.pattern())
	if err != nil {
		return err
	}
	for _, f := range stale {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("universal: removing stale %s: %w", filepath.Base(f), err)
		}
	}
	return build.CompiledBuild(ctx, b.env, b.p, []string{b.env.Settings.Toolchain.Shell, "pack.sh"})
}

func (b *universalBuilder) pattern() string {
	return filepath.Join(b.workspace(), b.p.Name+"*.zip")
}

func (b *universalBuilder) Package(ctx context.Context, destDir string) ([]string, error) {
	pattern := b.pattern()
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", build.ErrNoArchive, pattern)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s: %d files", build.ErrAmbiguousArchive, pattern, len(matches))
	}

	dest := filepath.Join(destDir, filepath.Base(matches[0]))
	if err := pack.CopyFile(matches[0], dest); err != nil {
		return nil, err
	}
	return []string{dest}, nil
}
