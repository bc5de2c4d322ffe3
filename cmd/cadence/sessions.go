package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/cadence/internal/cli"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved checkpoints",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		persistence, err := cli.OpenStore(ctx, app.cfg, app.logger)
		if err != nil {
			return err
		}
		defer persistence.Close()

		ids, err := persistence.Store.List(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, id := range ids {
			cp, err := persistence.Store.Load(ctx, id)
			if err != nil {
				fmt.Fprintf(out, "%s\t(unreadable: %v)\n", id, err)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", id, cp.Program, cp.SavedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a checkpoint as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		persistence, err := cli.OpenStore(ctx, app.cfg, app.logger)
		if err != nil {
			return err
		}
		defer persistence.Close()

		cp, err := persistence.Store.Load(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cp)
	},
}

var sessionsRemoveCmd = &cobra.Command{
	Use:     "rm <session-id>...",
	Aliases: []string{"delete"},
	Short:   "Delete checkpoints",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		persistence, err := cli.OpenStore(ctx, app.cfg, app.logger)
		if err != nil {
			return err
		}
		defer persistence.Close()

		for _, id := range args {
			if err := persistence.Store.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsRemoveCmd)
}
