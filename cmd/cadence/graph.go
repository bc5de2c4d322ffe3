package main

import (
	"fmt"

	"github.com/aretw0/cadence/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <program>",
	Short: "Export the control flow of a program",
	Long:  `Outputs a Mermaid diagram (graph TD) with one node per instruction of the program.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		p, err := eng.Program(args[0])
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if current, _ := cmd.Flags().GetString("current"); current != "" {
			overlay = &graph.GraphOverlay{CurrentLine: current}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(p, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("current", "", "Highlight the line with this id")
}
