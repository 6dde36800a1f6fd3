package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/dataset"
	"github.com/zpam/spamscan/pkg/feedback"
	"github.com/zpam/spamscan/pkg/model"
	"github.com/zpam/spamscan/pkg/scanner"
	"github.com/zpam/spamscan/pkg/words"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flag variables are package globals and survive between runs
	configFile, logLevel = "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("model:\n  path: %s\n  words_path: %s\n",
		filepath.Join(dir, "spam-model.json"), filepath.Join(dir, "suspicious-words.json"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTrainScanWordsWorkflow(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir)

	out, err := execute(t, "train", "--sample", "-c", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Training Complete")
	assert.FileExists(t, filepath.Join(dir, "spam-model.json"))
	assert.FileExists(t, filepath.Join(dir, "suspicious-words.json"))

	m, err := model.Load(filepath.Join(dir, "spam-model.json"))
	require.NoError(t, err)
	assert.Equal(t, 27, m.Features())

	out, err = execute(t, "scan", "--json", "-c", configPath, "Win a free car now!")
	require.NoError(t, err)

	var res scanner.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.IsSpam)
	assert.InDelta(t, 0.6861, res.Confidence, 1e-9)
	assert.Contains(t, res.SuspiciousWordsFound, "free")
	assert.Contains(t, res.HighlightedText, "<mark>free</mark>")

	out, err = execute(t, "words", "--json", "--limit", "4", "-c", configPath)
	require.NoError(t, err)

	var table words.Table
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	require.Len(t, table, 4)
	got := []string{table[0].Word, table[1].Word, table[2].Word, table[3].Word}
	assert.ElementsMatch(t, []string{"car", "free", "now", "win"}, got)
	for _, e := range table {
		assert.InDelta(t, 0.3910692191331413, e.Score, 1e-9)
	}

	out, err = execute(t, "model", "inspect", "-c", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Vocabulary size: 27")
	assert.Contains(t, out, "Spam prior: 0.5000")
}

func TestScanWithoutModel(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir)

	_, err := execute(t, "scan", "-c", configPath, "hello")
	require.Error(t, err)

	var cfgErr *model.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestFeedbackExport(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "feedback.db")

	store, err := feedback.Open(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = store.Add(ctx, "Win a free car now!", bayes.Spam, feedback.Correct)
	require.NoError(t, err)
	_, err = store.Add(ctx, "Lunch tomorrow?", bayes.Spam, feedback.Incorrect)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	csvPath := filepath.Join(dir, "feedback.csv")
	out, err := execute(t, "feedback", "export", "--db", dbPath, "-o", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 rows")

	records, err := dataset.Load(csvPath)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "spam", records[0].Category)
	assert.Equal(t, "ham", records[1].Category)

	rows, err := csv.NewReader(bytes.NewReader(mustRead(t, csvPath))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{dataset.MessageColumn, dataset.CategoryColumn}, rows[0])
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestBenchmarkRun(t *testing.T) {
	m, err := model.Train(model.SampleCorpus(), model.TrainOptions{})
	require.NoError(t, err)

	s := scanner.New(nil)
	s.Swap(scanner.NewSnapshot(m, words.FromModel(m), "test", 0, scanner.Options{}))

	var records []dataset.Record
	for _, ex := range model.SampleCorpus() {
		records = append(records, dataset.Record{Message: ex.Text, Category: ex.Label.String()})
	}

	bench := &Benchmark{scanner: s}
	result, err := bench.Run(context.Background(), records, 3, 4)
	require.NoError(t, err)

	assert.Equal(t, 18, result.TotalMessages)
	assert.Equal(t, 18, result.TruePositives+result.FalsePositives+result.TrueNegatives+result.FalseNegatives)
	assert.Equal(t, 18, result.Latency.Count)
	// Training data is separable for this model
	assert.Equal(t, 1.0, result.Accuracy())
	assert.Equal(t, 1.0, result.Precision())
	assert.Equal(t, 1.0, result.Recall())
}

func TestBenchmarkRunWithoutModel(t *testing.T) {
	bench := &Benchmark{scanner: scanner.New(nil)}
	_, err := bench.Run(context.Background(), []dataset.Record{{Message: "hi", Category: "ham"}}, 1, 1)
	assert.ErrorIs(t, err, scanner.ErrNotReady)
}

func TestConfigWarnings(t *testing.T) {
	c := config.DefaultConfig()
	assert.Contains(t, configWarnings(c), "CORS allows any origin")

	c.Server.AllowedOrigins = []string{"https://mail.example.com"}
	assert.Empty(t, configWarnings(c))

	c.Model.WordsPath = ""
	assert.Len(t, configWarnings(c), 1)
}

func TestConfigGenerateAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")

	out, err := execute(t, "config", "generate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file generated")

	_, err = execute(t, "config", "generate", path)
	assert.Error(t, err)

	out, err = execute(t, "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}
