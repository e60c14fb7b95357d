package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustedanalytics/platform-parent/src/catalog"
)

var catalogURL string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the artifact catalog",
}

var catalogResolveCmd = &cobra.Command{
	Use:   "resolve [version]",
	Short: "Show the catalog directory a release number maps to",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version := cfg.Settings.Catalog.Version
		if len(args) == 1 {
			version = args[0]
		}
		base := cfg.Settings.Catalog.URL
		if catalogURL != "" {
			base = catalogURL
		}

		client, err := catalog.NewClient(cfg.Settings.HTTP.TimeoutSeconds, cfg.Settings.Catalog.CacheSize)
		if err != nil {
			return err
		}
		res, err := client.Resolve(commandContext(cmd), base, version)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", res.Dir, res.Release, res.Outcome)
		return nil
	},
}

func init() {
	catalogResolveCmd.Flags().StringVar(&catalogURL, "url", "", "catalog base URL (default from settings.catalog.url)")
	catalogCmd.AddCommand(catalogResolveCmd)
	rootCmd.AddCommand(catalogCmd)
}
