package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"martflow/internal/runner"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the project's models and their dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := loadProject()
		if err != nil {
			return err
		}

		r := runner.New(proj, nil, runner.Options{DryRun: true})
		compiled, order, err := r.Plan()
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Model", "Layer", "Materialization", "Schema", "Depends On", "Tests"})
		table.SetBorder(false)

		for _, name := range order {
			model := proj.Models[name]
			deps := compiled[name].DependsOn
			sort.Strings(deps)

			testCount := 0
			for _, col := range model.Columns {
				testCount += len(col.Tests)
			}

			table.Append([]string{
				name,
				string(model.Layer),
				string(model.Materialized),
				model.Schema,
				joinOrDash(deps),
				fmt.Sprintf("%d", testCount),
			})
		}

		table.Render()

		if len(proj.Tests) > 0 {
			fmt.Printf("\nSingular tests: %d\n", len(proj.Tests))
		}
		if proj.Schedule.Cron != "" {
			fmt.Printf("Schedule (external orchestrator): %s\n", proj.Schedule.Cron)
		}
		return nil
	},
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
