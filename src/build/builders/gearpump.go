package builders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/ctxlog"
	"github.com/trustedanalytics/platform-parent/src/pack"
)

const (
	gearpumpManifest   = "src/cloudfoundry/manifest.yml"
	gearpumpBinaries   = "src/main/resources/gearpump"
	gearpumpVersionKey = "GEARPUMP_PACK_VERSION"
	dashboardArchive   = "gearpump-dashboard.zip"
)

// gearpumpBuilder is a java build that first pulls the gearpump binary
// distribution into its resources and additionally ships a dashboard
// archive derived from that distribution.
type gearpumpBuilder struct {
	javaBuilder

	// Set by Build.
	packVersion string
	binaries    string
}

func newGearpump(p config.Project, env *build.Env) build.Builder {
	return &gearpumpBuilder{javaBuilder: javaBuilder{gitSource{p: p, env: env}}}
}

// GearpumpVersions splits a pack version such as "2.11.5-0.7.1" into the
// short release version used in download paths and the full version.
func GearpumpVersions(packVersion string) (short, long string, err error) {
	parts := strings.Split(packVersion, "-")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("gearpump: malformed pack version %q", packVersion)
	}
	if _, err := masterminds.NewVersion(parts[1]); err != nil {
		return "", "", fmt.Errorf("gearpump: pack version %q: %w", packVersion, err)
	}
	return parts[1], packVersion, nil
}

// BinariesURL fills the {short_ver} and {long_ver} placeholders.
func BinariesURL(tmpl, short, long string) string {
	return strings.NewReplacer("{short_ver}", short, "{long_ver}", long).Replace(tmpl)
}

func (b *gearpumpBuilder) Build(ctx context.Context) error {
	packVersion, err := build.ManifestEnv(filepath.Join(b.workspace(), filepath.FromSlash(gearpumpManifest)), gearpumpVersionKey)
	if err != nil {
		return err
	}
	short, long, err := GearpumpVersions(packVersion)
	if err != nil {
		return err
	}

	url := BinariesURL(b.env.Settings.Gearpump.BinariesURL, short, long)
	dest := filepath.Join(b.workspace(), filepath.FromSlash(gearpumpBinaries), "gearpump-"+long+".zip")
	ctxlog.FromContext(ctx).Info("downloading gearpump binaries", "version", long, "url", url)
	if err := b.env.Catalog.Download(ctx, url, dest); err != nil {
		return err
	}
	b.packVersion = long
	b.binaries = dest

	return b.javaBuilder.Build(ctx)
}

func (b *gearpumpBuilder) Package(ctx context.Context, destDir string) ([]string, error) {
	archives, err := b.javaBuilder.Package(ctx, destDir)
	if err != nil {
		return nil, err
	}
	dashboard, err := b.dashboard(ctx, destDir)
	if err != nil {
		return nil, err
	}
	return append(archives, dashboard), nil
}

// dashboard unpacks the binaries, lets scripts/prepare.sh lay out the
// dashboard application, and zips its manifest and bundle.
func (b *gearpumpBuilder) dashboard(ctx context.Context, destDir string) (string, error) {
	if b.binaries == "" {
		return "", fmt.Errorf("gearpump: binaries not downloaded")
	}
	tmp, err := os.MkdirTemp("", "gearpump-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	if err := pack.Extract(ctx, b.binaries, tmp); err != nil {
		return "", err
	}
	dist := filepath.Join(tmp, "gearpump-"+b.packVersion)

	err = b.env.Runner.Run(ctx, build.Command{
		Project: b.p.Name,
		Dir:     filepath.Join(b.workspace(), "scripts"),
		Args:    []string{b.env.Settings.Toolchain.Shell, "prepare.sh", dist, dist},
	})
	if err != nil {
		return "", err
	}

	dest := filepath.Join(destDir, dashboardArchive)
	if _, err := pack.Zip(dist, []string{"manifest.yml", "target/gearpump-dashboard.zip"}, dest); err != nil {
		return "", err
	}
	return dest, nil
}
