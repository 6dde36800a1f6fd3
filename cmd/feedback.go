package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/dataset"
	"github.com/zpam/spamscan/pkg/feedback"
)

var (
	feedbackDB     string
	feedbackOutput string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Inspect and export recorded feedback",
}

var feedbackStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise recorded verdicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFeedbackStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.All(cmd.Context())
		if err != nil {
			return err
		}

		var correct, incorrect, spam int
		for _, e := range entries {
			if e.Verdict == feedback.Correct {
				correct++
			} else {
				incorrect++
			}
			if e.Label() == bayes.Spam {
				spam++
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "💬 Feedback entries: %d\n", len(entries))
		fmt.Fprintf(out, "✅ Correct: %d\n", correct)
		fmt.Fprintf(out, "❌ Incorrect: %d\n", incorrect)
		if len(entries) > 0 {
			fmt.Fprintf(out, "🎯 Accuracy: %.2f%%\n", float64(correct)/float64(len(entries))*100)
		}
		fmt.Fprintf(out, "📊 Labels: spam %d, ham %d\n", spam, len(entries)-spam)
		return nil
	},
}

var feedbackExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export corrected labels as a Message,Category CSV",
	Long: `Write every recorded verdict as a training row. Incorrect verdicts are
flipped to the other class. The result can be passed to
'spamscan train --feedback'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFeedbackStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Records(cmd.Context())
		if err != nil {
			return err
		}

		if feedbackOutput == "" || feedbackOutput == "-" {
			return dataset.Write(cmd.OutOrStdout(), records)
		}
		if err := dataset.Save(feedbackOutput, records); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Exported %d rows to %s\n", len(records), feedbackOutput)
		return nil
	},
}

func openFeedbackStore(cmd *cobra.Command) (*feedback.Store, error) {
	path := cfg.Feedback.DBPath
	if cmd.Flags().Changed("db") {
		path = feedbackDB
	}
	if path == "" {
		return nil, errors.New("no feedback database configured (set feedback.db_path or --db)")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "feedback database")
	}
	return feedback.Open(path)
}

func init() {
	feedbackCmd.PersistentFlags().StringVar(&feedbackDB, "db", "", "Feedback database path (overrides config)")
	feedbackExportCmd.Flags().StringVarP(&feedbackOutput, "output", "o", "", "CSV file to write, stdout when empty")

	feedbackCmd.AddCommand(feedbackStatsCmd)
	feedbackCmd.AddCommand(feedbackExportCmd)
}
