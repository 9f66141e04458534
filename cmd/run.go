package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"martflow/internal/config"
	"martflow/internal/runner"
	"martflow/internal/ui"
)

var flagFailFast bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Materialize all models in dependency order",
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
		if !flagDryRun {
			if err := connectWarehouse(ctx, service); err != nil {
				return err
			}
			defer service.Close()
		}

		var bar *ui.ProgressBar
		r := runner.New(proj, service, runner.Options{
			DryRun:   flagDryRun,
			FailFast: flagFailFast,
			OnModel: func(done, total int, mr runner.ModelResult) {
				if bar == nil {
					bar = ui.NewProgressBar(total)
				}
				if mr.Status == runner.StatusSkipped {
					bar.Skip(done, mr.Name)
				} else {
					bar.Update(done, mr.Name, mr.Status == runner.StatusSuccess)
				}
			},
		})

		result, err := r.Run(ctx)
		if err != nil {
			return err
		}
		if bar != nil {
			bar.Finish()
		}

		printModelResults(result)

		if result.Failed() {
			return fmt.Errorf("run failed")
		}
		ui.ShowSuccess(fmt.Sprintf("Run completed in %s", result.Duration.Round(time.Millisecond)))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Compile and plan without executing")
	runCmd.Flags().BoolVar(&flagFailFast, "fail-fast", false, "Stop scheduling models after the first failure")
	rootCmd.AddCommand(runCmd)
}
