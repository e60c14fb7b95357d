package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/ctxlog"
)

var (
	cfgFile string
	envFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

// commands that run without a project list, including cobra's shell
// completion commands.
var noConfig = map[string]bool{
	"version":                       true,
	"kinds":                         true,
	"help":                          true,
	"completion":                    true,
	cobra.ShellCompRequestCmd:       true,
	cobra.ShellCompNoDescRequestCmd: true,
}

// needsConfig reports whether cmd, or any command above it, reads the
// project list.
func needsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if noConfig[c.Name()] {
			return false
		}
	}
	return true
}

var rootCmd = &cobra.Command{
	Use:   "platform-parent",
	Short: "Build and package the platform's applications",
	Long: `platform-parent fetches every project listed in the config, builds it with
the tool its builder kind calls for and packages deployable zip archives
under tools/, apps/ and files/ of the output directory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(envFile); err != nil {
			return err
		}
		if !needsConfig(cmd) {
			logger = ctxlog.New(os.Stderr, levelFor(config.DefaultSettings().Log.Level), "text")
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger = ctxlog.New(os.Stderr, levelFor(cfg.Settings.Log.Level), cfg.Settings.Log.Format)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "project list and settings")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadEnv reads a dotenv file if present. Variables already set win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func levelFor(configured string) string {
	if verbose {
		return "debug"
	}
	return configured
}

// commandContext attaches the run logger.
func commandContext(cmd *cobra.Command) context.Context {
	return ctxlog.WithLogger(cmd.Context(), logger)
}

// Execute runs the root command. Interrupts cancel the run context so
// queued projects are skipped.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
