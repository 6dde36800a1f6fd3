package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/model"
	"github.com/zpam/spamscan/pkg/words"
)

var (
	modelInspectJSON bool
	modelPublishPath string
	modelWordsPath   string
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect and distribute model documents",
}

type modelSummary struct {
	Path               string          `json:"path"`
	Features           int             `json:"features"`
	SpamPrior          float64         `json:"spam_prior"`
	HamPrior           float64         `json:"ham_prior"`
	NormalizationError float64         `json:"normalization_error"`
	Metadata           *model.Metadata `json:"metadata,omitempty"`
}

var modelInspectCmd = &cobra.Command{
	Use:   "inspect [model-file]",
	Short: "Validate a model document and print its dimensions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Model.Path
		if len(args) > 0 {
			path = args[0]
		}

		m, err := model.Load(path)
		if err != nil {
			return err
		}

		priors := m.Classifier().ClassLogPrior()
		summary := modelSummary{
			Path:               path,
			Features:           m.Features(),
			SpamPrior:          math.Exp(priors[bayes.Spam]),
			HamPrior:           math.Exp(priors[bayes.Ham]),
			NormalizationError: m.NormalizationError(),
		}
		if meta := m.Metadata(); !meta.TrainedAt.IsZero() {
			summary.Metadata = &meta
		}

		out := cmd.OutOrStdout()
		if modelInspectJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		fmt.Fprintf(out, "🧠 Model: %s\n", summary.Path)
		fmt.Fprintf(out, "═══════════════════════════════════════\n")
		fmt.Fprintf(out, "📊 Vocabulary size: %d\n", summary.Features)
		fmt.Fprintf(out, "🚫 Spam prior: %.4f\n", summary.SpamPrior)
		fmt.Fprintf(out, "✅ Ham prior: %.4f\n", summary.HamPrior)
		fmt.Fprintf(out, "🧮 Normalization error: %.2e\n", summary.NormalizationError)
		if summary.Metadata != nil {
			fmt.Fprintf(out, "🕒 Trained at: %s\n", summary.Metadata.TrainedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(out, "📧 Documents: %d (spam %d, ham %d)\n",
				summary.Metadata.Documents, summary.Metadata.SpamDocuments, summary.Metadata.HamDocuments)
			fmt.Fprintf(out, "⚙️  Alpha: %g\n", summary.Metadata.Alpha)
		}
		return nil
	},
}

var modelPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish model and words documents to the Redis registry",
	Long: `Upload the model document and its suspicious-words table to Redis and
announce the new version, so every server following the registry swaps
to it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath := cfg.Model.Path
		if modelPublishPath != "" {
			modelPath = modelPublishPath
		}
		wordsPath := cfg.Model.WordsPath
		if cmd.Flags().Changed("words") {
			wordsPath = modelWordsPath
		}

		m, err := model.Load(modelPath)
		if err != nil {
			return err
		}

		var table words.Table
		if wordsPath != "" {
			table, err = words.Load(wordsPath)
			switch {
			case errors.Is(err, os.ErrNotExist):
				table = words.FromModel(m).Top(cfg.Training.WordsLimit)
			case err != nil:
				return err
			}
		} else {
			table = words.FromModel(m).Top(cfg.Training.WordsLimit)
		}

		version, err := publishArtifacts(cmd.Context(), m, table)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "📡 Published %s as version %d (%d words)\n", modelPath, version, len(table))
		return nil
	},
}

func init() {
	modelInspectCmd.Flags().BoolVar(&modelInspectJSON, "json", false, "Print the summary as JSON")
	modelPublishCmd.Flags().StringVarP(&modelPublishPath, "model", "m", "", "Model document to publish (overrides config)")
	modelPublishCmd.Flags().StringVarP(&modelWordsPath, "words", "w", "", "Words document to publish, derived from the model when missing")

	modelCmd.AddCommand(modelInspectCmd)
	modelCmd.AddCommand(modelPublishCmd)
}
