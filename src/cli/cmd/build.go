package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	_ "github.com/trustedanalytics/platform-parent/src/build/builders"
	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/output"
	"github.com/trustedanalytics/platform-parent/src/pipeline"
)

var (
	bOutput         string
	bWorkspace      string
	bReleaseTag     string
	bCatalogVersion string
	bRefsFile       string
	bRefs           []string
	bWorkers        int
	bOnly           []string
	bJUnit          string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Fetch, build and package every configured project",
	Long: `Fetch, build and package the projects of the config.

Each project is handled by one worker from start to finish. A failing
project is reported and the rest of the run continues; the command exits
non-zero if any project failed.`,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVarP(&bOutput, "output", "o", "", "output directory (default from settings.output)")
	f.StringVar(&bWorkspace, "workspace", "", "parent directory of project workspaces")
	f.StringVar(&bReleaseTag, "release-tag", "", "default ref for projects without a pin")
	f.StringVar(&bCatalogVersion, "catalog-version", "", "catalog release for tarball projects")
	f.StringVar(&bRefsFile, "refs-file", "", "refs.txt of a previous run to rebuild from")
	f.StringArrayVar(&bRefs, "ref", nil, "pin a project ref as name=ref (repeatable)")
	f.IntVarP(&bWorkers, "workers", "j", 0, "concurrent workers (default number of CPUs)")
	f.StringSliceVar(&bOnly, "only", nil, "build only the named projects")
	f.StringVar(&bJUnit, "junit", "", "write a JUnit XML report to this path")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	overrides, err := config.ParseRefOverrides(bRefs)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Output:         bOutput,
		Workspace:      bWorkspace,
		ReleaseTag:     bReleaseTag,
		CatalogVersion: bCatalogVersion,
		Workers:        bWorkers,
		RefsFile:       bRefsFile,
		RefOverrides:   overrides,
		Only:           bOnly,
	}

	w := os.Stdout
	colorOn := output.UseColor()
	settings := opts.ApplyTo(cfg.Settings)

	workers := "auto"
	if settings.Workers > 0 {
		workers = strconv.Itoa(settings.Workers)
	}
	release := settings.ReleaseTag
	if release == "" {
		release = "-"
	}
	output.ContextBlock(w, []output.KV{
		{Key: "Config", Value: cfgFile},
		{Key: "Projects", Value: strconv.Itoa(len(cfg.Applications))},
		{Key: "Output", Value: settings.Output},
		{Key: "Workers", Value: workers},
		{Key: "Release", Value: release},
		{Key: "Catalog", Value: settings.Catalog.Version},
	})

	output.SectionStart(w, "platform_build", "Build")
	summary, err := pipeline.Run(commandContext(cmd), cfg, opts)
	output.SectionEnd(w, "platform_build")
	if summary != nil {
		output.RunSummary(w, summary, colorOn)
		if bJUnit != "" {
			if jerr := output.WriteJUnit(bJUnit, summary); jerr != nil {
				logger.Warn("writing junit report", "path", bJUnit, "error", jerr)
			}
		}
	}
	if err != nil {
		return err
	}

	if failed := summary.Count(pipeline.StatusFailed); failed > 0 {
		return fmt.Errorf("%d of %d projects failed", failed, len(summary.Results))
	}
	if skipped := summary.Count(pipeline.StatusSkipped); skipped > 0 {
		return fmt.Errorf("%d of %d projects skipped", skipped, len(summary.Results))
	}
	return nil
}
