package builders

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/config"
)

// goBuilder builds GOPATH-style projects. The workspace is linked into
// $GOPATH/<import prefix>/<name> so import paths resolve.
type goBuilder struct {
	gitSource
}

func newGo(p config.Project, env *build.Env) build.Builder {
	return &goBuilder{gitSource{p: p, env: env}}
}

func (b *goBuilder) Category() build.Category { return build.Apps }

func (b *goBuilder) Fetch(ctx context.Context) (build.Fetched, error) {
	f, err := b.gitSource.Fetch(ctx)
	if err != nil {
		return f, err
	}
	if err := b.link(); err != nil {
		return build.Fetched{}, err
	}
	return f, nil
}

func (b *goBuilder) gopath() string {
	if root := b.env.Settings.GoPath.Root; root != "" {
		return root
	}
	return os.Getenv("GOPATH")
}

// link creates the GOPATH symlink. Concurrent workers may race to create
// the parent or the link; both are treated as already done.
func (b *goBuilder) link() error {
	root := b.gopath()
	if root == "" {
		return fmt.Errorf("go builder: GOPATH is not set")
	}
	parent := filepath.Join(root, filepath.FromSlash(b.env.Settings.GoPath.ImportPrefix))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("go builder: %w", err)
	}
	err := os.Symlink(b.workspace(), filepath.Join(parent, b.p.Name))
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("go builder: linking workspace: %w", err)
	}
	return nil
}

func (b *goBuilder) Build(ctx context.Context) error {
	var env []string
	if root := b.gopath(); root != "" {
		env = append(env, "GOPATH="+root, "GO111MODULE=auto")
	}
	return build.CompiledBuild(ctx, b.env, b.p, b.env.Settings.Toolchain.Go, env...)
}

func (b *goBuilder) Package(ctx context.Context, destDir string) ([]string, error) {
	return build.ZipItems(b.env, b.p, b.items(), destDir, nil)
}
