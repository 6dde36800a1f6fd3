package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/logging"
)

var (
	configFile string
	logLevel   string

	// Loaded by the root pre-run hook for every subcommand
	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "spamscan",
	Short: "spamscan - TF-IDF + Naive Bayes spam classifier",
	Long: `spamscan trains a TF-IDF + Multinomial Naive Bayes spam classifier,
exports it as a portable JSON model document and serves predictions with
suspicious-word highlighting over HTTP or as an MTA milter.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %v", err)
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}

		closer, err := logging.Setup(loaded.Logging.Level, loaded.Logging.Format, loaded.Logging.File)
		if err != nil {
			return err
		}

		cfg = loaded
		logCloser = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "spamscan - TF-IDF + Naive Bayes spam classifier")
		fmt.Fprintln(cmd.OutOrStdout(), "Use 'spamscan --help' for usage information")
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging level (debug, info, warn, error)")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(wordsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(milterCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(benchmarkCmd)
}
