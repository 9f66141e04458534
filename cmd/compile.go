package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"martflow/internal/materialize"
	"martflow/internal/runner"
	"martflow/internal/ui"
)

var flagOutputDir string

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Render every model to executable SQL without running it",
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

		outDir := flagOutputDir
		if outDir == "" {
			outDir = filepath.Join(proj.Root, "target", "compiled")
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		for _, name := range order {
			model := proj.Models[name]
			statement, err := materialize.Render(model, compiled[name].SQL)
			if err != nil {
				return err
			}

			outPath := filepath.Join(outDir, name+".sql")
			if err := os.WriteFile(outPath, []byte(statement+"\n"), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
		}

		ui.ShowSuccess(fmt.Sprintf("Compiled %d models to %s", len(order), outDir))
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVarP(&flagOutputDir, "output", "o", "", "Directory for compiled SQL (default <project>/target/compiled)")
	rootCmd.AddCommand(compileCmd)
}
