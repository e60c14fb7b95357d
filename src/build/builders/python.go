package builders

import (
	"context"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/config"
)

// pythonBuilder vendors requirements next to the sources.
type pythonBuilder struct {
	gitSource
}

func newPython(p config.Project, env *build.Env) build.Builder {
	return &pythonBuilder{gitSource{p: p, env: env}}
}

func (b *pythonBuilder) Category() build.Category { return build.Apps }

func (b *pythonBuilder) Build(ctx context.Context) error {
	if !b.env.Exists(b.p, "requirements.txt") {
		return nil
	}
	argv := []string{b.env.Settings.Toolchain.Pip, "install", "-r", "requirements.txt", "--target", "vendor"}
	return build.CompiledBuild(ctx, b.env, b.p, argv)
}

func (b *pythonBuilder) Package(ctx context.Context, destDir string) ([]string, error) {
	version := func() (string, error) { return build.PythonVersion(b.workspace()) }
	return build.ZipItems(b.env, b.p, b.items(), destDir, version)
}
