package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/dataset"
	"github.com/zpam/spamscan/pkg/profiler"
	"github.com/zpam/spamscan/pkg/scanner"
)

var (
	benchmarkData       string
	benchmarkSpamDir    string
	benchmarkHamDir     string
	benchmarkRuns       int
	benchmarkConcurrent int
	benchmarkProfile    bool
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Measure scan throughput and accuracy on a labelled dataset",
	Long: `Scan every message of a labelled dataset with the trained model and
report latency percentiles, throughput and classification accuracy.

Messages come from a Message,Category CSV (training.data_path by
default) or from directories of spam and ham emails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := benchmarkRecords(cmd)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return errors.New("no messages to benchmark")
		}

		snap, err := loadSnapshot(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		prof := profiler.NewProfiler()
		s := scanner.New(prof)
		s.Swap(snap)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "🚀 spamscan Performance Benchmark\n")
		fmt.Fprintf(out, "📧 Messages: %d\n", len(records))
		fmt.Fprintf(out, "🔄 Benchmark runs: %d\n", benchmarkRuns)
		fmt.Fprintf(out, "⚡ Concurrent workers: %d\n\n", benchmarkConcurrent)

		bench := &Benchmark{scanner: s}
		result, err := bench.Run(cmd.Context(), records, benchmarkRuns, benchmarkConcurrent)
		if err != nil {
			return err
		}

		displayBenchmarkResults(out, result)
		if benchmarkProfile {
			prof.WriteReport(out)
		}
		return nil
	},
}

func benchmarkRecords(cmd *cobra.Command) ([]dataset.Record, error) {
	if benchmarkSpamDir == "" && benchmarkHamDir == "" {
		path := cfg.Training.DataPath
		if cmd.Flags().Changed("data") {
			path = benchmarkData
		}
		return dataset.Load(path)
	}

	var records []dataset.Record
	for _, src := range []struct {
		dir   string
		class bayes.Class
	}{{benchmarkSpamDir, bayes.Spam}, {benchmarkHamDir, bayes.Ham}} {
		if src.dir == "" {
			continue
		}
		loaded, err := dataset.LoadDir(src.dir, src.class)
		if err != nil {
			return nil, err
		}
		records = append(records, loaded...)
	}
	return records, nil
}

// BenchmarkResult contains performance and accuracy metrics
type BenchmarkResult struct {
	TotalMessages  int
	TotalTime      time.Duration
	MessagesPerSec float64
	Latency        *profiler.Stats

	// Confusion matrix against the dataset labels
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
}

// Accuracy returns the share of correctly classified messages
func (r *BenchmarkResult) Accuracy() float64 {
	total := r.TruePositives + r.FalsePositives + r.TrueNegatives + r.FalseNegatives
	if total == 0 {
		return 0
	}
	return float64(r.TruePositives+r.TrueNegatives) / float64(total)
}

// Precision returns TP / (TP + FP)
func (r *BenchmarkResult) Precision() float64 {
	if r.TruePositives+r.FalsePositives == 0 {
		return 0
	}
	return float64(r.TruePositives) / float64(r.TruePositives+r.FalsePositives)
}

// Recall returns TP / (TP + FN)
func (r *BenchmarkResult) Recall() float64 {
	if r.TruePositives+r.FalseNegatives == 0 {
		return 0
	}
	return float64(r.TruePositives) / float64(r.TruePositives+r.FalseNegatives)
}

// Benchmark scans a dataset repeatedly
type Benchmark struct {
	scanner *scanner.Scanner
}

// Run scans every record runs times with at most concurrent workers
func (b *Benchmark) Run(ctx context.Context, records []dataset.Record, runs, concurrent int) (*BenchmarkResult, error) {
	if runs < 1 {
		runs = 1
	}
	if concurrent < 1 {
		concurrent = 1
	}

	latency := profiler.NewProfiler()
	result := &BenchmarkResult{TotalMessages: len(records) * runs}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrent)

	start := time.Now()
	for run := 0; run < runs; run++ {
		for _, rec := range records {
			rec := rec
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}

				timer := latency.Start(profiler.StageScan)
				res, err := b.scanner.Scan(rec.Message)
				timer.Stop()
				if err != nil {
					return err
				}

				mu.Lock()
				defer mu.Unlock()
				spam := rec.Class() == bayes.Spam
				switch {
				case res.IsSpam && spam:
					result.TruePositives++
				case res.IsSpam && !spam:
					result.FalsePositives++
				case !res.IsSpam && !spam:
					result.TrueNegatives++
				default:
					result.FalseNegatives++
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.TotalTime = time.Since(start)
	if secs := result.TotalTime.Seconds(); secs > 0 {
		result.MessagesPerSec = float64(result.TotalMessages) / secs
	}
	result.Latency = latency.GetStats(profiler.StageScan)
	return result, nil
}

// displayBenchmarkResults shows formatted benchmark results
func displayBenchmarkResults(out io.Writer, result *BenchmarkResult) {
	fmt.Fprintf(out, "📊 Benchmark Results\n")
	fmt.Fprintf(out, "═══════════════════════════════════════\n\n")

	fmt.Fprintf(out, "⚡ Performance Metrics:\n")
	fmt.Fprintf(out, "  Total messages processed: %d\n", result.TotalMessages)
	fmt.Fprintf(out, "  Total time: %v\n", result.TotalTime)
	fmt.Fprintf(out, "  Messages per second: %.0f\n", result.MessagesPerSec)
	if st := result.Latency; st != nil && st.Count > 0 {
		fmt.Fprintf(out, "\n📈 Time Distribution:\n")
		fmt.Fprintf(out, "  Average: %s\n", profiler.FormatDuration(st.Average))
		fmt.Fprintf(out, "  Min: %s\n", profiler.FormatDuration(st.Min))
		fmt.Fprintf(out, "  Max: %s\n", profiler.FormatDuration(st.Max))
		fmt.Fprintf(out, "  Median: %s\n", profiler.FormatDuration(st.Median))
		fmt.Fprintf(out, "  95th percentile: %s\n", profiler.FormatDuration(st.P95))
		fmt.Fprintf(out, "  99th percentile: %s\n", profiler.FormatDuration(st.P99))
	}

	fmt.Fprintf(out, "\n🎯 Classification Results:\n")
	fmt.Fprintf(out, "  Spam caught: %d\n", result.TruePositives)
	fmt.Fprintf(out, "  Spam missed: %d\n", result.FalseNegatives)
	fmt.Fprintf(out, "  Ham passed: %d\n", result.TrueNegatives)
	fmt.Fprintf(out, "  Ham flagged: %d\n", result.FalsePositives)
	fmt.Fprintf(out, "  Accuracy: %.2f%%\n", result.Accuracy()*100)
	fmt.Fprintf(out, "  Precision: %.2f%%\n", result.Precision()*100)
	fmt.Fprintf(out, "  Recall: %.2f%%\n", result.Recall()*100)
	fmt.Fprintf(out, "\n")
}

func init() {
	benchmarkCmd.Flags().StringVarP(&benchmarkData, "data", "d", "", "Labelled CSV to scan (overrides config)")
	benchmarkCmd.Flags().StringVarP(&benchmarkSpamDir, "spam-dir", "s", "", "Directory containing spam emails")
	benchmarkCmd.Flags().StringVar(&benchmarkHamDir, "ham-dir", "", "Directory containing ham emails")
	benchmarkCmd.Flags().IntVarP(&benchmarkRuns, "runs", "r", 1, "Number of passes over the dataset")
	benchmarkCmd.Flags().IntVar(&benchmarkConcurrent, "concurrent", runtime.NumCPU(), "Number of concurrent workers")
	benchmarkCmd.Flags().BoolVar(&benchmarkProfile, "profile", false, "Print the per-stage profiler report")
}
