package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aretw0/cadence/internal/cli"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <program>",
	Short: "Play a program in the terminal",
	Long: `Reveals each line with a typewriter effect, fires its events and asks for choices.
With --session the playthrough is checkpointed and resumed on the next run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		opts := cli.PlayOptions{In: os.Stdin, Out: cmd.OutOrStdout()}
		if len(args) > 0 {
			opts.Program = args[0]
		}
		opts.SessionID, _ = flags.GetString("session")
		opts.Fresh, _ = flags.GetBool("fresh")
		opts.JSON, _ = flags.GetBool("json")
		opts.Events, _ = flags.GetBool("events")
		opts.Markdown, _ = flags.GetBool("markdown")
		opts.Watch, _ = flags.GetBool("watch")
		opts.Pause, _ = flags.GetDuration("pause")
		noBanner, _ := flags.GetBool("no-banner")
		opts.Banner = !noBanner

		if raw, _ := flags.GetString("vars"); raw != "" {
			vars, err := cli.ParseVariables(raw)
			if err != nil {
				return fmt.Errorf("error parsing --vars: %w", err)
			}
			opts.Variables = vars
		}
		if rate, _ := flags.GetInt("rate"); flags.Changed("rate") {
			app.cfg.Runtime.TypewriterRate = rate
		}
		if opts.Program == "" && opts.SessionID == "" {
			return fmt.Errorf("play needs a program or a --session to resume")
		}

		ctx := cmd.Context()
		eng, err := newEngine()
		if err != nil {
			return err
		}
		persistence, err := cli.OpenStore(ctx, app.cfg, app.logger)
		if err != nil {
			return err
		}
		defer persistence.Close()

		return cli.Play(ctx, app.cfg, eng, persistence.Store, app.logger, opts)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("session", "", "Checkpoint under this session id and resume it")
	playCmd.Flags().Bool("fresh", false, "Discard the saved checkpoint of --session")
	playCmd.Flags().Bool("json", false, "NDJSON output; choices are read as JSON lines")
	playCmd.Flags().Bool("events", false, "Echo fired events")
	playCmd.Flags().Bool("markdown", false, "Render lines as markdown")
	playCmd.Flags().BoolP("watch", "w", false, "Restart on program changes (hot reload)")
	playCmd.Flags().Duration("pause", 600*time.Millisecond, "Delay after each completed line")
	playCmd.Flags().Int("rate", 1, "Graphemes revealed per tick")
	playCmd.Flags().String("vars", "", `Initial variables as JSON, e.g. '{"gold": 3}'`)
	playCmd.Flags().Bool("no-banner", false, "Skip the banner")
}
