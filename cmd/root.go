package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"martflow/internal/log"
)

var (
	flagProject string
	flagVerbose bool
	flagQuiet   bool
	flagDryRun  bool

	rootCmd = &cobra.Command{
		Use:   "martflow",
		Short: "Run SQL transformation pipelines against Snowflake",
		Long: "Martflow - compiles layered SQL models (staging, intermediate, marts), " +
			"materializes them against Snowflake in dependency order, and validates " +
			"the results with declarative and singular data checks",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				log.Default().SetLevel(log.DebugLevel)
			}
			if flagQuiet {
				log.Default().SetLevel(log.ErrorLevel)
			}
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", ".", "Path to the pipeline project directory")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress non-error output")
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home + "/.martflow")
	}

	// Missing config file is fine; setup creates it on demand.
	_ = viper.ReadInConfig()
}
