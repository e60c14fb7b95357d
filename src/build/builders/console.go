package builders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/ctxlog"
)

// consoleBuilder builds node front-ends. Development dependencies are
// dropped before packaging and the manifest carries the package version.
type consoleBuilder struct {
	gitSource
}

func newConsole(p config.Project, env *build.Env) build.Builder {
	return &consoleBuilder{gitSource{p: p, env: env}}
}

func (b *consoleBuilder) Category() build.Category { return build.Apps }

func (b *consoleBuilder) Build(ctx context.Context) error {
	npm := b.env.Settings.Toolchain.Npm
	steps := [][]string{
		{npm, "install"},
		{npm, "run", "build"},
	}
	for _, argv := range steps {
		if err := build.CompiledBuild(ctx, b.env, b.p, argv); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(filepath.Join(b.workspace(), "node_modules")); err != nil {
		return fmt.Errorf("console builder: removing node_modules: %w", err)
	}
	return build.CompiledBuild(ctx, b.env, b.p, []string{npm, "install", "--production"})
}

func (b *consoleBuilder) Package(ctx context.Context, destDir string) ([]string, error) {
	version := func() (string, error) { return build.NodeVersion(b.workspace()) }

	if b.env.Exists(b.p, "manifest.yml") {
		v, err := version()
		if err != nil {
			return nil, err
		}
		if err := build.StampManifest(filepath.Join(b.workspace(), "manifest.yml"), "VERSION", v); err != nil {
			return nil, err
		}
		ctxlog.FromContext(ctx).Debug("manifest stamped", "version", v)
	}
	return build.ZipItems(b.env, b.p, b.items(), destDir, version)
}
