package cmd

import (
	"fmt"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/fixtures"
	"github.com/spf13/cobra"
)

func newFiltersCmd() *cobra.Command {
	var now string

	cmd := &cobra.Command{
		Use:   "filters [name]",
		Short: "List the example filters",
		Long: `List the example filters over the phone dataset. With a name, print that filter as a
YAML document that "scan --filter" accepts.

Examples:
  litetable-filter filters
  litetable-filter filters condition > condition.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clock, err := parseClock(now)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				example, ok := fixtures.Lookup(clock, args[0])
				if !ok {
					return fmt.Errorf("unknown example %q", args[0])
				}
				doc, err := filter.MarshalDefinition(example.Filter)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(doc)
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Description", "Filter"})
			for _, example := range fixtures.Examples(clock) {
				t.AppendRow(table.Row{example.Name, example.Description, example.Filter.String()})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&now, "now", "", "dataset time for timestamp filters as RFC 3339 (default current time)")
	return cmd
}
