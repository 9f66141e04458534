package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"martflow/internal/config"
	"martflow/internal/secrets"
	"martflow/pkg/models"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initial configuration setup",
	Run:   runSetup,
}

func runSetup(cmd *cobra.Command, args []string) {
	fmt.Println("Setting up martflow...")
	fmt.Println()

	if config.Exists() {
		var overwrite bool
		prompt := &survey.Confirm{
			Message: "Configuration already exists. Do you want to overwrite it?",
			Default: false,
		}
		survey.AskOne(prompt, &overwrite)
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return
		}
	}

	cfg := &models.Config{}

	fmt.Println("Snowflake Configuration")
	fmt.Println("-----------------------")

	snowflakeQs := []*survey.Question{
		{
			Name: "account",
			Prompt: &survey.Input{
				Message: "Snowflake Account (e.g., xy12345.us-east-1):",
			},
			Validate: survey.Required,
		},
		{
			Name: "username",
			Prompt: &survey.Input{
				Message: "Username:",
			},
			Validate: survey.Required,
		},
		{
			Name: "password",
			Prompt: &survey.Password{
				Message: "Password:",
			},
			Validate: survey.Required,
		},
		{
			Name: "role",
			Prompt: &survey.Input{
				Message: "Role:",
				Default: "TRANSFORMER",
			},
			Validate: survey.Required,
		},
		{
			Name: "warehouse",
			Prompt: &survey.Input{
				Message: "Warehouse:",
				Default: "COMPUTE_WH",
			},
			Validate: survey.Required,
		},
		{
			Name: "database",
			Prompt: &survey.Input{
				Message: "Target database:",
				Default: "ANALYTICS",
			},
			Validate: survey.Required,
		},
		{
			Name: "schema",
			Prompt: &survey.Input{
				Message: "Default schema:",
				Default: "PUBLIC",
			},
			Validate: survey.Required,
		},
	}

	if err := survey.Ask(snowflakeQs, &cfg.Snowflake); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Prefer the OS keyring for the password; fall back to the encrypted
	// config file when the keyring is unavailable.
	var useKeyring bool
	keyringPrompt := &survey.Confirm{
		Message: "Store the password in the OS keyring instead of the config file?",
		Default: true,
	}
	survey.AskOne(keyringPrompt, &useKeyring)

	if useKeyring {
		if err := secrets.StorePassword(cfg.Snowflake.Account, cfg.Snowflake.Username, cfg.Snowflake.Password); err != nil {
			fmt.Printf("Warning: keyring unavailable (%v), keeping password in config file\n", err)
		} else {
			cfg.Snowflake.Password = ""
		}
	}

	if err := config.Save(cfg); err != nil {
		fmt.Printf("Error saving configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Configuration saved to %s\n", config.GetConfigFile())
	fmt.Println("Run 'martflow ls' inside a project directory to get started.")
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
