package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/catalog"
	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/ctxlog"
	"github.com/trustedanalytics/platform-parent/src/expand"
	"github.com/trustedanalytics/platform-parent/src/publish"
	"github.com/trustedanalytics/platform-parent/src/refs"
	"github.com/trustedanalytics/platform-parent/src/source"
)

// Options are per-invocation overrides of the loaded configuration plus
// optional collaborators. Zero values keep the configured behaviour.
type Options struct {
	Output         string
	Workspace      string
	ReleaseTag     string
	CatalogVersion string
	Workers        int

	// RefsFile is a previous run's refs.txt (or any "name ref" file).
	RefsFile string

	// RefOverrides maps project name to ref and beats RefsFile.
	RefOverrides map[string]string

	// Only restricts the run to the named projects.
	Only []string

	Registry  *build.Registry
	Runner    build.Runner
	Fetcher   source.Fetcher
	Publisher publish.Publisher
}

// ApplyTo returns settings with the non-zero overrides applied.
func (o Options) ApplyTo(s config.Settings) config.Settings {
	if o.Output != "" {
		s.Output = o.Output
	}
	if o.Workspace != "" {
		s.Workspace = o.Workspace
	}
	if o.ReleaseTag != "" {
		s.ReleaseTag = o.ReleaseTag
	}
	if o.CatalogVersion != "" {
		s.Catalog.Version = o.CatalogVersion
	}
	if o.Workers > 0 {
		s.Workers = o.Workers
	}
	return s
}

// Select returns the projects named in only, in configuration order.
// An empty filter selects everything; unknown names are an error.
func Select(projects []config.Project, only []string) ([]config.Project, error) {
	if len(only) == 0 {
		return projects, nil
	}
	want := make(map[string]bool, len(only))
	for _, n := range only {
		want[n] = true
	}
	var out []config.Project
	for _, p := range projects {
		if want[p.Name] {
			out = append(out, p)
			delete(want, p.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for _, n := range only {
			if want[n] {
				missing = append(missing, n)
			}
		}
		return nil, fmt.Errorf("unknown project(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Run executes a full build: every selected project goes through the
// worker pool, then the refs manifest, the deployment descriptor and the
// optional upload are produced. Per-project failures are reported in the
// Summary; the returned error is reserved for run-level failures.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Summary, error) {
	start := time.Now()
	settings := opts.ApplyTo(cfg.Settings)

	registry := opts.Registry
	if registry == nil {
		registry = build.Default
	}

	withSettings := *cfg
	withSettings.Settings = settings
	warnings, err := config.Validate(&withSettings, registry.Kinds())
	if err != nil {
		return nil, err
	}

	projects, err := Select(cfg.Applications, opts.Only)
	if err != nil {
		return nil, err
	}

	fileRefs, err := config.LoadRefsFile(opts.RefsFile)
	if err != nil {
		return nil, err
	}
	resolver := config.Refs{
		CLI:          opts.RefOverrides,
		File:         fileRefs,
		ReleaseTag:   settings.ReleaseTag,
		KindDefaults: map[string]string{"atk": settings.Catalog.Version},
	}
	projects = resolver.Apply(projects)

	workspace, err := filepath.Abs(cfg.Resolve(settings.Workspace))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	outputRoot, err := filepath.Abs(settings.Output)
	if err != nil {
		return nil, err
	}
	layout := build.Layout{Root: outputRoot}
	if err := layout.Prepare(); err != nil {
		return nil, err
	}

	client, err := catalog.NewClient(settings.HTTP.TimeoutSeconds, settings.Catalog.CacheSize)
	if err != nil {
		return nil, err
	}
	env := &build.Env{
		Settings:  settings,
		Workspace: workspace,
		ConfigDir: cfg.Dir,
		Runner:    opts.Runner,
		Fetcher:   opts.Fetcher,
		Catalog:   client,
	}
	if env.Runner == nil {
		env.Runner = build.NewExecRunner(env.LogDir())
	}
	if env.Fetcher == nil {
		env.Fetcher = source.NewGit()
	}

	runID := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("run", runID)
	ctx = ctxlog.WithLogger(ctx, logger)
	for _, w := range warnings {
		logger.Warn(w)
	}

	agg := refs.New()
	pool := &Pool{
		Workers:  settings.Workers,
		Registry: registry,
		Env:      env,
		Layout:   layout,
		Refs:     agg,
	}
	results := pool.Run(ctx, projects)

	summary := &Summary{
		RunID:    runID,
		Output:   outputRoot,
		Results:  results,
		Warnings: warnings,
	}

	summary.RefsFile, err = agg.WriteFile(layout.Dir(build.Files))
	if err != nil {
		return summary, err
	}
	summary.Refs = agg.Snapshot()
	logger.Info("refs written", "path", summary.RefsFile, "entries", len(summary.Refs))

	categories := make([]string, len(build.Categories))
	for i, c := range build.Categories {
		categories[i] = string(c)
	}

	if tmpl := settings.Expand.Template; tmpl != "" {
		archives, err := expand.ScanArchives(layout.Root, categories)
		if err != nil {
			return summary, err
		}
		out := filepath.Join(layout.Dir(build.Files), settings.Expand.Output)
		err = expand.File(cfg.Resolve(tmpl), out, expand.Data{
			RunID:      runID,
			ReleaseTag: settings.ReleaseTag,
			Refs:       agg.Map(),
			Archives:   archives,
		})
		if err != nil {
			return summary, err
		}
		summary.Descriptor = out
		logger.Info("deployment descriptor written", "path", out)
	}

	publisher := opts.Publisher
	if publisher == nil {
		if pubCfg, ok := publish.FromSettings(settings.Publish); ok {
			publisher, err = publish.NewS3Publisher(pubCfg)
			if err != nil {
				return summary, err
			}
		}
	}
	if publisher != nil {
		if ctx.Err() != nil {
			return summary, errors.Join(errors.New("publish skipped"), ctx.Err())
		}
		summary.Published, err = publisher.Publish(ctx, runID, layout.Root, categories)
		if err != nil {
			return summary, err
		}
		logger.Info("published", "objects", len(summary.Published))
	}

	summary.Duration = time.Since(start)
	return summary, nil
}
