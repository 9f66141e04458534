package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"martflow/internal/config"
	"martflow/internal/runner"
	"martflow/internal/ui"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run all models, then all data checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := loadProject()
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		applyRunDefaults(cmd, cfg)

		service, err := warehouseService(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := connectWarehouse(ctx, service); err != nil {
			return err
		}
		defer service.Close()

		r := runner.New(proj, service, runner.Options{FailFast: flagFailFast})

		result, err := r.Build(ctx)
		if err != nil {
			return err
		}

		printModelResults(result)
		if len(result.Checks) > 0 {
			fmt.Println()
			printCheckResults(result)
		}

		if result.Failed() {
			return fmt.Errorf("build failed")
		}
		ui.ShowSuccess("Build completed")
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&flagFailFast, "fail-fast", false, "Stop scheduling models after the first failure")
	rootCmd.AddCommand(buildCmd)
}
