package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/ctxlog"
	"github.com/trustedanalytics/platform-parent/src/pack"
	"github.com/trustedanalytics/platform-parent/src/source"
)

// GitFetch acquires p into its workspace and reports the checked out
// commit as the project's ref.
func GitFetch(ctx context.Context, env *Env, p config.Project) (Fetched, error) {
	res, err := env.Fetcher.Acquire(ctx, source.Request{
		Dir: env.WorkspaceDir(p.Name),
		URL: p.SourceURL(env.Settings.ReposURL),
		Ref: p.Snapshot,
	})
	if err != nil {
		return Fetched{}, err
	}
	ctxlog.FromContext(ctx).Info("sources ready",
		"outcome", res.Outcome.String(),
		"branch", res.Branch,
		"commit", res.Commit,
	)
	return Fetched{Ref: res.Commit}, nil
}

// CompiledBuild runs argv in the project workspace.
func CompiledBuild(ctx context.Context, env *Env, p config.Project, argv []string, extraEnv ...string) error {
	if len(argv) == 0 {
		return fmt.Errorf("build: no build command configured for %s", p.Builder)
	}
	return env.Runner.Run(ctx, Command{
		Project: p.Name,
		Dir:     env.WorkspaceDir(p.Name),
		Args:    argv,
		Env:     extraEnv,
	})
}

// ZipItems archives items from the workspace of p into
// destDir/<archive name>.zip. version is consulted only for names with a
// {version} placeholder.
func ZipItems(env *Env, p config.Project, items []string, destDir string, version func() (string, error)) ([]string, error) {
	name, err := ArchiveName(p.ArchiveBase(), version)
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(destDir, name+".zip")
	if _, err := pack.Zip(env.WorkspaceDir(p.Name), items, dest); err != nil {
		return nil, err
	}
	return []string{dest}, nil
}

// CopyExtraFiles copies files into the workspace root and returns the
// destination paths. Relative sources resolve against the config
// directory.
func CopyExtraFiles(env *Env, p config.Project, files []string) ([]string, error) {
	ws := env.WorkspaceDir(p.Name)
	copied := make([]string, 0, len(files))
	for _, f := range files {
		src := env.Resolve(f)
		dst := filepath.Join(ws, filepath.Base(src))
		if err := pack.CopyFile(src, dst); err != nil {
			return nil, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

// fileExists reports whether path names an existing entry.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Exists reports whether rel exists inside the workspace of p.
func (e *Env) Exists(p config.Project, rel string) bool {
	return fileExists(filepath.Join(e.WorkspaceDir(p.Name), rel))
}
