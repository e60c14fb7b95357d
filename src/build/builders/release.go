package builders

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/config"
)

// releaseBuilder downloads an already packaged release archive. There is
// nothing to fetch or build and no ref to record.
type releaseBuilder struct {
	p   config.Project
	env *build.Env
}

func newRelease(p config.Project, env *build.Env) build.Builder {
	return &releaseBuilder{p: p, env: env}
}

func (b *releaseBuilder) Category() build.Category { return build.Apps }

func (b *releaseBuilder) Fetch(context.Context) (build.Fetched, error) {
	return build.Fetched{}, nil
}

func (b *releaseBuilder) Build(context.Context) error { return nil }

func (b *releaseBuilder) Package(ctx context.Context, destDir string) ([]string, error) {
	if b.p.URL == "" {
		return nil, fmt.Errorf("release builder: no url for %s", b.p.Name)
	}
	dest := filepath.Join(destDir, b.p.ArchiveBase()+".zip")
	if err := b.env.Catalog.Download(ctx, b.p.URL, dest); err != nil {
		return nil, err
	}
	return []string{dest}, nil
}
