package builders

import (
	"context"
	"fmt"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/config"
)

// javaBuilder builds with maven and packages the manifest plus the jar
// named after the pom version.
type javaBuilder struct {
	gitSource
}

func newJava(p config.Project, env *build.Env) build.Builder {
	return &javaBuilder{gitSource{p: p, env: env}}
}

func (b *javaBuilder) Category() build.Category { return build.Apps }

func (b *javaBuilder) Build(ctx context.Context) error {
	return build.CompiledBuild(ctx, b.env, b.p, b.env.Settings.Toolchain.Maven)
}

func (b *javaBuilder) Package(ctx context.Context, destDir string) ([]string, error) {
	version := func() (string, error) { return build.MavenVersion(b.workspace()) }

	items := b.p.Items
	if len(items) == 0 {
		v, err := version()
		if err != nil {
			return nil, err
		}
		items = []string{"manifest.yml", fmt.Sprintf("target/%s-%s.jar", b.p.Name, v)}
	}
	return build.ZipItems(b.env, b.p, items, destDir, version)
}
