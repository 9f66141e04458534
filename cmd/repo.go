package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"martflow/internal/config"
	"martflow/internal/repo"
	"martflow/internal/ui"
	"martflow/pkg/models"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage git-hosted pipeline projects",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <name> <git-url>",
	Short: "Register a pipeline repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, r := range cfg.Repositories {
			if r.Name == args[0] {
				return fmt.Errorf("repository %s already exists", args[0])
			}
		}

		branch, _ := cmd.Flags().GetString("branch")
		cfg.Repositories = append(cfg.Repositories, models.Repository{
			Name:   args[0],
			GitURL: args[1],
			Branch: branch,
		})

		if err := config.Save(cfg); err != nil {
			return err
		}

		ui.ShowSuccess(fmt.Sprintf("Added repository %s", args[0]))
		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered pipeline repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if len(cfg.Repositories) == 0 {
			fmt.Println("No repositories configured.")
			return nil
		}

		table := ui.NewTable()
		table.AddHeader("NAME", "URL", "BRANCH", "LOCAL PATH")
		for _, r := range cfg.Repositories {
			branch := r.Branch
			if branch == "" {
				branch = "default"
			}
			table.AddRow(r.Name, r.GitURL, branch, repo.LocalPath(r))
		}
		table.Render()
		return nil
	},
}

var repoSyncCmd = &cobra.Command{
	Use:   "sync <name>",
	Short: "Clone or fast-forward a pipeline repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, r := range cfg.Repositories {
			if r.Name == args[0] {
				path, err := repo.Sync(cmd.Context(), r)
				if err != nil {
					return err
				}
				ui.ShowSuccess(fmt.Sprintf("Repository %s synced to %s", r.Name, path))
				return nil
			}
		}

		return fmt.Errorf("repository %s is not configured", args[0])
	},
}

func init() {
	repoAddCmd.Flags().String("branch", "", "Branch to track (default: remote default branch)")
	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoSyncCmd)
	rootCmd.AddCommand(repoCmd)
}
