package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/spf13/cobra"
)

// programSummary is one row of `cadence inspect`.
type programSummary struct {
	Name         string   `json:"name"`
	Instructions int      `json:"instructions"`
	Lines        int      `json:"lines"`
	Events       int      `json:"events"`
	Choices      int      `json:"choices"`
	Variables    []string `json:"variables"`
	Constants    []string `json:"constants,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func summarize(name string, p *domain.Program) programSummary {
	s := programSummary{Name: name, Instructions: p.Len(), Variables: []string{}}
	for _, ins := range p.Instructions {
		switch ins.Kind {
		case domain.KindLine:
			s.Lines++
		case domain.KindEvent:
			s.Events++
		case domain.KindChoice:
			s.Choices++
		}
	}
	for _, d := range p.Variables {
		kind := string(d.Type)
		switch {
		case d.Branch != nil:
			kind = "branch"
		case d.Enum != "":
			kind = d.Enum
		}
		s.Variables = append(s.Variables, fmt.Sprintf("%s:%s", d.Name, kind))
	}
	for _, c := range p.PublicConstants() {
		s.Constants = append(s.Constants, fmt.Sprintf("%s=%s", c.Name, c.Value.Display()))
	}
	return s
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the programs of the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		eng, err := newEngine()
		if err != nil {
			return err
		}
		names, err := eng.Programs()
		if err != nil {
			return err
		}

		rows := make([]programSummary, 0, len(names))
		for _, name := range names {
			p, err := eng.Program(name)
			if err != nil {
				rows = append(rows, programSummary{Name: name, Error: err.Error()})
				continue
			}
			rows = append(rows, summarize(name, p))
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROGRAM\tINSTR\tLINES\tEVENTS\tCHOICES\tVARIABLES")
		for _, r := range rows {
			if r.Error != "" {
				fmt.Fprintf(tw, "%s\t-\t-\t-\t-\terror: %s\n", r.Name, r.Error)
				continue
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%v\n", r.Name, r.Instructions, r.Lines, r.Events, r.Choices, r.Variables)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("json", false, "Print JSON instead of a table")
}
