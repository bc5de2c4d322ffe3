package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/internal/cli"
	"github.com/aretw0/cadence/internal/config"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/spf13/cobra"
)

// app holds what every subcommand shares once flags and config are resolved.
var app struct {
	cfg    config.Config
	logger *slog.Logger
	debug  bool
}

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Cadence plays dialogue scripts in sync with text progress",
	Long: `Cadence runs compiled dialogue programs: lines revealed progressively,
events fired at exact positions of each line, choices and typed variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		// Flags override file and environment.
		if cmd.Flags().Changed("repo") {
			cfg.Repo, _ = cmd.Flags().GetString("repo")
		}
		if cmd.Flags().Changed("loader") {
			cfg.Loader, _ = cmd.Flags().GetString("loader")
		}
		if cmd.Flags().Changed("hooks") {
			cfg.Hooks, _ = cmd.Flags().GetString("hooks")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		app.debug, _ = cmd.Flags().GetBool("debug")
		app.cfg = cfg
		app.logger = cli.NewLogger(cfg.Logging, app.debug)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./cadence.yaml when present)")
	rootCmd.PersistentFlags().String("repo", ".", "Directory containing the programs")
	rootCmd.PersistentFlags().String("loader", config.LoaderLoam, "Program loader: loam or file")
	rootCmd.PersistentFlags().String("hooks", "", "hooks.yaml binding event ids to local commands")
	rootCmd.PersistentFlags().Bool("debug", false, "Log lifecycle events to stderr")
}

func newEngine(hooks ...domain.LifecycleHooks) (*cadence.Engine, error) {
	return cli.NewEngine(app.cfg, app.logger, app.debug, hooks...)
}
