package cmd

import (
	"context"
	"fmt"
	"time"

	"martflow/internal/project"
	"martflow/internal/runner"
	"martflow/internal/secrets"
	"martflow/internal/ui"
	"martflow/internal/warehouse"
	"martflow/pkg/errors"
	"martflow/pkg/models"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// loadProject loads the project the invocation targets.
func loadProject() (*project.Project, error) {
	return project.Load(flagProject)
}

// warehouseService builds the warehouse connection from config, resolving the
// active environment's overrides and pulling the password from the OS keyring
// when the config file omits it.
func warehouseService(cfg *models.Config) (*warehouse.Service, error) {
	sf, rawTimeout, err := cfg.EffectiveSnowflake()
	if err != nil {
		return nil, errors.ConfigError(err.Error(), "run.environment").
			WithSuggestions("Declare the environment under 'environments' in the config file")
	}

	password := sf.Password
	if password == "" {
		password, err = secrets.GetPassword(sf.Account, sf.Username)
		if err != nil {
			return nil, errors.New(errors.ErrCodeCredentialMissing,
				"No warehouse password in config or keyring").
				WithSuggestions("Run 'martflow setup' to store credentials")
		}
	}

	timeout := 30 * time.Second
	if rawTimeout != "" {
		parsed, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return nil, errors.ConfigError(
				fmt.Sprintf("Invalid run timeout %q", rawTimeout), "run.timeout")
		}
		timeout = parsed
	}

	whConfig := warehouse.Config{
		Account:    sf.Account,
		Username:   sf.Username,
		Password:   password,
		Database:   sf.Database,
		Schema:     sf.Schema,
		Warehouse:  sf.Warehouse,
		Role:       sf.Role,
		Timeout:    timeout,
		MaxRetries: cfg.Run.MaxRetries,
	}

	if err := warehouse.ValidateConfig(whConfig); err != nil {
		return nil, errors.ConfigError(err.Error(), "snowflake")
	}

	return warehouse.NewService(whConfig), nil
}

// applyRunDefaults seeds run flags from config when they were not given on
// the command line.
func applyRunDefaults(cmd *cobra.Command, cfg *models.Config) {
	if f := cmd.Flags().Lookup("dry-run"); f != nil && !f.Changed {
		flagDryRun = cfg.Run.DryRun
	}
	if f := cmd.Flags().Lookup("fail-fast"); f != nil && !f.Changed {
		flagFailFast = cfg.Run.FailFast
	}
}

// connectWarehouse opens the connection behind a spinner, since cold
// warehouses can take a while to resume.
func connectWarehouse(ctx context.Context, service *warehouse.Service) error {
	spinner := ui.NewSpinner("Connecting to warehouse")
	spinner.Start()

	err := service.Connect(ctx)
	if err != nil {
		spinner.Stop(false, "Connection failed")
		return err
	}

	spinner.Stop(true, "Connected")
	return nil
}

func printModelResults(result *runner.RunResult) {
	table := ui.NewTable()
	table.AddHeader("MODEL", "MATERIALIZATION", "STATUS", "DURATION")
	for _, m := range result.Models {
		table.AddRow(m.Name, string(m.Materialized), colorStatus(string(m.Status)), m.Duration.Round(time.Millisecond).String())
	}
	table.Render()

	success, failed, skipped := result.Counts()
	fmt.Printf("\n%s %s %s\n",
		color.GreenString("%d succeeded", success),
		color.RedString("%d failed", failed),
		color.YellowString("%d skipped", skipped),
	)

	for _, m := range result.Models {
		if m.Err != nil {
			ui.ShowError(m.Err)
		}
	}
}

func printCheckResults(result *runner.RunResult) {
	table := ui.NewTable()
	table.AddHeader("CHECK", "KIND", "SEVERITY", "STATUS", "FAILURES")
	for _, c := range result.Checks {
		table.AddRow(
			c.Check.Name,
			string(c.Check.Kind),
			string(c.Check.Severity),
			colorStatus(string(c.Status)),
			fmt.Sprintf("%d", c.Failures),
		)
	}
	table.Render()

	passed, warned, failed := result.CheckCounts()
	fmt.Printf("\n%s %s %s\n",
		color.GreenString("%d passed", passed),
		color.YellowString("%d warned", warned),
		color.RedString("%d failed", failed),
	)

	for _, c := range result.Checks {
		if c.Status == runner.CheckWarned {
			ui.ShowWarning(fmt.Sprintf("%s: %d violating rows", c.Check.Name, c.Failures))
		}
		if c.Err != nil {
			ui.ShowError(c.Err)
		}
	}
}

func colorStatus(status string) string {
	switch status {
	case "success", "passed":
		return ui.ColorSuccess(status)
	case "failed", "errored":
		return ui.ColorError(status)
	case "skipped", "warned":
		return ui.ColorWarning(status)
	default:
		return status
	}
}
