package builders

import (
	"context"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/config"
)

// toolBuilder packages sources as-is into tools/.
type toolBuilder struct {
	gitSource
}

func newTool(p config.Project, env *build.Env) build.Builder {
	return &toolBuilder{gitSource{p: p, env: env}}
}

func (b *toolBuilder) Category() build.Category { return build.Tools }

func (b *toolBuilder) Build(context.Context) error { return nil }

func (b *toolBuilder) Package(ctx context.Context, destDir string) ([]string, error) {
	return build.ZipItems(b.env, b.p, b.items(), destDir, nil)
}
