package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustedanalytics/platform-parent/src/build"
	_ "github.com/trustedanalytics/platform-parent/src/build/builders"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the supported builder kinds",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range build.Kinds() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}
