package main

import (
	"fmt"

	"github.com/aretw0/cadence/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [program...]",
	Short: "Check programs for consistency",
	Long: `Compiles every program of the repository (or only the named ones), reporting
corrupt programs as errors and unreachable code or never-set variables as warnings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		var reports []validator.Report
		if len(args) == 0 {
			if reports, err = validator.ValidateAll(eng); err != nil {
				return err
			}
		} else {
			for _, name := range args {
				reports = append(reports, validator.Validate(eng, name))
			}
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, r := range reports {
			if !r.OK() {
				failed++
				fmt.Fprintf(out, "✗ %s: %v\n", r.Program, r.Err)
				continue
			}
			fmt.Fprintf(out, "✓ %s\n", r.Program)
			for _, w := range r.Warnings {
				fmt.Fprintf(out, "    warning: %s\n", w)
			}
		}

		if failed > 0 {
			return fmt.Errorf("validation failed: %d of %d program(s) invalid", failed, len(reports))
		}
		fmt.Fprintf(out, "%d program(s) valid\n", len(reports))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
