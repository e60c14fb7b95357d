package builders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/catalog"
	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/ctxlog"
	"github.com/trustedanalytics/platform-parent/src/pack"
)

// atkBuilder ships a prebuilt tarball from the artifact catalog. Its ref is
// a catalog release number rather than a git revision.
type atkBuilder struct {
	p   config.Project
	env *build.Env

	// Set by Fetch.
	tarball string
	release int
}

func newAtk(p config.Project, env *build.Env) build.Builder {
	return &atkBuilder{p: p, env: env}
}

func (b *atkBuilder) Category() build.Category { return build.Apps }

func (b *atkBuilder) catalogURL() string {
	if b.p.URL != "" {
		return b.p.URL
	}
	return b.env.Settings.Catalog.URL
}

func (b *atkBuilder) Fetch(ctx context.Context) (build.Fetched, error) {
	if b.p.TarName == "" {
		return build.Fetched{}, fmt.Errorf("atk builder: tar_name is required")
	}
	version := b.p.Snapshot
	if version == "" {
		version = catalog.Latest
	}

	base := b.catalogURL()
	res, err := b.env.Catalog.Resolve(ctx, base, version)
	if err != nil {
		return build.Fetched{}, err
	}

	b.tarball = filepath.Join(b.env.Workspace, b.p.Name+".tar.gz")
	url := catalog.BinaryURL(base, res.Dir, b.p.TarName)
	ctxlog.FromContext(ctx).Info("downloading tarball",
		"catalog_dir", res.Dir,
		"release", res.Release,
		"outcome", res.Outcome.String(),
	)
	if err := b.env.Catalog.Download(ctx, url, b.tarball); err != nil {
		return build.Fetched{}, err
	}
	b.release = res.Release
	return build.Fetched{Ref: strconv.Itoa(res.Release)}, nil
}

// Build unpacks the tarball into a fresh workspace.
func (b *atkBuilder) Build(ctx context.Context) error {
	ws := b.env.WorkspaceDir(b.p.Name)
	if err := os.RemoveAll(ws); err != nil {
		return fmt.Errorf("atk builder: clearing workspace: %w", err)
	}
	return pack.Extract(ctx, b.tarball, ws)
}

// Package adds the extra files, stamps the catalog release into the
// manifest and zips the whole workspace.
func (b *atkBuilder) Package(ctx context.Context, destDir string) ([]string, error) {
	extra := b.p.ExtraFiles
	if len(extra) == 0 {
		def := filepath.Join("utils", b.p.Name, "manifest.yml")
		if _, err := os.Stat(b.env.Resolve(def)); err == nil {
			extra = []string{def}
		}
	}
	copied, err := build.CopyExtraFiles(b.env, b.p, extra)
	if err != nil {
		return nil, err
	}
	for _, f := range copied {
		if filepath.Base(f) != "manifest.yml" {
			continue
		}
		if err := build.StampManifest(f, "VERSION", strconv.Itoa(b.release)); err != nil {
			return nil, err
		}
	}
	return build.ZipItems(b.env, b.p, nil, destDir, nil)
}
