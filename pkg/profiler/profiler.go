package profiler

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Stage names recorded by the scanner
const (
	StagePredict   = "predict"
	StageHighlight = "highlight"
	StageScan      = "scan"
)

// Profiler tracks execution times per named stage
type Profiler struct {
	mu    sync.RWMutex
	times map[string][]time.Duration
}

// NewProfiler creates a new profiler
func NewProfiler() *Profiler {
	return &Profiler{
		times: make(map[string][]time.Duration),
	}
}

// Timer represents a running measurement
type Timer struct {
	profiler *Profiler
	name     string
	start    time.Time
}

// Start begins timing a stage. A nil profiler yields a timer that records nothing.
func (p *Profiler) Start(name string) *Timer {
	return &Timer{
		profiler: p,
		name:     name,
		start:    time.Now(),
	}
}

// Stop completes the timing and records the duration
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)
	if t.profiler != nil {
		t.profiler.Record(t.name, duration)
	}
	return duration
}

// Record manually records a timing
func (p *Profiler) Record(name string, duration time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.times[name] = append(p.times[name], duration)
	p.mu.Unlock()
}

// Stats contains timing statistics for one stage
type Stats struct {
	Name    string        `json:"name"`
	Count   int           `json:"count"`
	Total   time.Duration `json:"total_ns"`
	Average time.Duration `json:"avg_ns"`
	Min     time.Duration `json:"min_ns"`
	Max     time.Duration `json:"max_ns"`
	Median  time.Duration `json:"median_ns"`
	P95     time.Duration `json:"p95_ns"`
	P99     time.Duration `json:"p99_ns"`
}

// GetStats returns timing statistics for a stage
func (p *Profiler) GetStats(name string) *Stats {
	p.mu.RLock()
	times := p.times[name]
	sorted := make([]time.Duration, len(times))
	copy(sorted, times)
	p.mu.RUnlock()

	if len(sorted) == 0 {
		return &Stats{Name: name}
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return &Stats{
		Name:    name,
		Count:   len(sorted),
		Total:   total,
		Average: total / time.Duration(len(sorted)),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Median:  sorted[len(sorted)/2],
		P95:     percentile(sorted, 0.95),
		P99:     percentile(sorted, 0.99),
	}
}

// percentile expects sorted input
func percentile(sorted []time.Duration, q float64) time.Duration {
	i := int(float64(len(sorted)) * q)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

// GetAllStats returns statistics for all tracked stages ordered by name
func (p *Profiler) GetAllStats() []*Stats {
	p.mu.RLock()
	names := make([]string, 0, len(p.times))
	for name := range p.times {
		names = append(names, name)
	}
	p.mu.RUnlock()

	sort.Strings(names)

	stats := make([]*Stats, 0, len(names))
	for _, name := range names {
		stats = append(stats, p.GetStats(name))
	}
	return stats
}

// Reset clears all timing data
func (p *Profiler) Reset() {
	p.mu.Lock()
	p.times = make(map[string][]time.Duration)
	p.mu.Unlock()
}

// WriteReport writes a formatted timing table to w
func (p *Profiler) WriteReport(w io.Writer) {
	stats := p.GetAllStats()

	if len(stats) == 0 {
		fmt.Fprintln(w, "No timing data available")
		return
	}

	fmt.Fprintf(w, "⏱️  Performance Profile Report\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "%-12s %8s %10s %8s %8s %8s %8s %8s\n",
		"Stage", "Count", "Total", "Avg", "Min", "Max", "P95", "P99")
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────────────\n")

	for _, stat := range stats {
		if stat.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "%-12s %8d %10s %8s %8s %8s %8s %8s\n",
			truncate(stat.Name, 12),
			stat.Count,
			FormatDuration(stat.Total),
			FormatDuration(stat.Average),
			FormatDuration(stat.Min),
			FormatDuration(stat.Max),
			FormatDuration(stat.P95),
			FormatDuration(stat.P99),
		)
	}

	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════════\n")
}

// FormatDuration formats a duration for display
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
