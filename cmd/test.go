package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"martflow/internal/config"
	"martflow/internal/runner"
	"martflow/internal/ui"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run all declared data checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := loadProject()
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		service, err := warehouseService(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := connectWarehouse(ctx, service); err != nil {
			return err
		}
		defer service.Close()

		r := runner.New(proj, service, runner.Options{})

		result, err := r.Test(ctx)
		if err != nil {
			return err
		}

		printCheckResults(result)

		if result.Failed() {
			return fmt.Errorf("data checks failed")
		}
		ui.ShowSuccess("All checks passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
