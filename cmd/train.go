package cmd

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/dataset"
	"github.com/zpam/spamscan/pkg/feedback"
	"github.com/zpam/spamscan/pkg/model"
	"github.com/zpam/spamscan/pkg/registry"
	"github.com/zpam/spamscan/pkg/words"
)

var (
	trainData       string
	trainFeedback   string
	trainFeedbackDB string
	trainSpamDir    string
	trainHamDir     string
	trainSample     bool
	trainModelPath  string
	trainWordsPath  string
	trainAlpha      float64
	trainWordsLimit int
	trainTop        int
	trainPublish    bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the TF-IDF + Naive Bayes model",
	Long: `Train the classifier on a labelled dataset and write the portable model
document plus the suspicious-words table.

Training data can come from a Message,Category CSV (with an optional
feedback CSV appended), from the feedback database, from directories of
raw spam and ham emails, or from the bundled six-message sample corpus.
Every run is a full batch refit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		applyTrainOverrides(cmd)

		records, err := collectTrainingRecords(ctx, cmd)
		if err != nil {
			return err
		}
		corpus := dataset.ToCorpus(records)
		ham, spam := corpus.Counts()

		fmt.Fprintf(out, "🧠 spamscan Training\n")
		fmt.Fprintf(out, "═══════════════════════════════════════\n")
		fmt.Fprintf(out, "📧 Messages: %d (spam %d, ham %d)\n", len(corpus), spam, ham)
		fmt.Fprintf(out, "💾 Model path: %s\n", cfg.Model.Path)
		fmt.Fprintf(out, "📝 Words path: %s\n\n", cfg.Model.WordsPath)

		start := time.Now()
		m, err := model.Train(corpus, model.TrainOptions{Alpha: cfg.Training.Alpha})
		if err != nil {
			return err
		}
		duration := time.Since(start)

		if err := m.Save(cfg.Model.Path); err != nil {
			return err
		}

		table := words.FromModel(m).Top(cfg.Training.WordsLimit)
		if cfg.Model.WordsPath != "" {
			if err := table.Save(cfg.Model.WordsPath); err != nil {
				return err
			}
		}

		fmt.Fprintf(out, "🎉 Training Complete!\n")
		fmt.Fprintf(out, "📊 Vocabulary size: %d\n", m.Features())
		fmt.Fprintf(out, "⏱️  Time taken: %v\n", duration)
		fmt.Fprintf(out, "✅ Model saved to: %s\n", cfg.Model.Path)
		if cfg.Model.WordsPath != "" {
			fmt.Fprintf(out, "✅ Suspicious words saved to: %s (%d words)\n", cfg.Model.WordsPath, len(table))
		}

		if trainTop > 0 {
			fmt.Fprintf(out, "\n🔥 Top spam words:\n")
			for i, e := range table.Suspicious().Top(trainTop) {
				fmt.Fprintf(out, "  %2d. %-20s %.4f\n", i+1, e.Word, e.Score)
			}
		}

		if trainPublish {
			version, err := publishArtifacts(ctx, m, table)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n📡 Published to Redis as version %d\n", version)
		}

		return nil
	},
}

func applyTrainOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Training.DataPath = trainData
	}
	if flags.Changed("feedback") {
		cfg.Training.FeedbackPath = trainFeedback
	}
	if flags.Changed("model") {
		cfg.Model.Path = trainModelPath
	}
	if flags.Changed("words") {
		cfg.Model.WordsPath = trainWordsPath
	}
	if flags.Changed("alpha") {
		cfg.Training.Alpha = trainAlpha
	}
	if flags.Changed("words-limit") {
		cfg.Training.WordsLimit = trainWordsLimit
	}
}

func collectTrainingRecords(ctx context.Context, cmd *cobra.Command) ([]dataset.Record, error) {
	var records []dataset.Record

	dirsGiven := trainSpamDir != "" || trainHamDir != ""
	switch {
	case trainSample:
		for _, ex := range model.SampleCorpus() {
			records = append(records, dataset.Record{Message: ex.Text, Category: ex.Label.String()})
		}
	case dirsGiven && !cmd.Flags().Changed("data"):
		// Email directories replace the CSV unless --data is given explicitly
	default:
		loaded, err := dataset.LoadWithFeedback(cfg.Training.DataPath, cfg.Training.FeedbackPath)
		if err != nil {
			return nil, err
		}
		records = loaded
	}

	if trainSpamDir != "" {
		loaded, err := dataset.LoadDir(trainSpamDir, bayes.Spam)
		if err != nil {
			return nil, err
		}
		records = append(records, loaded...)
	}
	if trainHamDir != "" {
		loaded, err := dataset.LoadDir(trainHamDir, bayes.Ham)
		if err != nil {
			return nil, err
		}
		records = append(records, loaded...)
	}

	dbPath := cfg.Feedback.DBPath
	if cmd.Flags().Changed("feedback-db") {
		dbPath = trainFeedbackDB
	}
	if dbPath != "" {
		store, err := feedback.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		loaded, err := store.Records(ctx)
		if err != nil {
			return nil, err
		}
		records = append(records, loaded...)
	}

	return records, nil
}

func publishArtifacts(ctx context.Context, m *model.Model, table words.Table) (int64, error) {
	modelDoc, err := m.Marshal()
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if err := table.Encode(&buf); err != nil {
		return 0, err
	}

	reg, err := registry.New(ctx, &cfg.Redis)
	if err != nil {
		return 0, err
	}
	defer reg.Close()

	return reg.Publish(ctx, modelDoc, buf.Bytes())
}

func init() {
	trainCmd.Flags().StringVarP(&trainData, "data", "d", "", "Training CSV with Message and Category columns (overrides config)")
	trainCmd.Flags().StringVar(&trainFeedback, "feedback", "", "Feedback CSV appended to the training data (overrides config)")
	trainCmd.Flags().StringVar(&trainFeedbackDB, "feedback-db", "", "Feedback database whose verdicts are appended (default from config, empty disables)")
	trainCmd.Flags().StringVarP(&trainSpamDir, "spam-dir", "s", "", "Directory containing spam emails")
	trainCmd.Flags().StringVar(&trainHamDir, "ham-dir", "", "Directory containing ham emails")
	trainCmd.Flags().BoolVar(&trainSample, "sample", false, "Train on the bundled sample corpus")
	trainCmd.Flags().StringVarP(&trainModelPath, "model", "m", "", "Path to write the model document (overrides config)")
	trainCmd.Flags().StringVarP(&trainWordsPath, "words", "w", "", "Path to write the suspicious words table (overrides config)")
	trainCmd.Flags().Float64Var(&trainAlpha, "alpha", 1.0, "Laplace smoothing constant (overrides config)")
	trainCmd.Flags().IntVar(&trainWordsLimit, "words-limit", 0, "Keep only the top N words in the exported table, 0 = all")
	trainCmd.Flags().IntVar(&trainTop, "top", 10, "Print the top N spam words after training")
	trainCmd.Flags().BoolVar(&trainPublish, "publish", false, "Publish the trained model to the Redis registry")
}
