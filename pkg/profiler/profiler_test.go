package profiler

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	p := NewProfiler()
	for i := 1; i <= 100; i++ {
		p.Record(StagePredict, time.Duration(i)*time.Microsecond)
	}

	stats := p.GetStats(StagePredict)
	assert.Equal(t, 100, stats.Count)
	assert.Equal(t, time.Microsecond, stats.Min)
	assert.Equal(t, 100*time.Microsecond, stats.Max)
	assert.Equal(t, 51*time.Microsecond, stats.Median)
	assert.Equal(t, 96*time.Microsecond, stats.P95)
	assert.Equal(t, 100*time.Microsecond, stats.P99)
	assert.Equal(t, 5050*time.Microsecond, stats.Total)
}

func TestSingleSample(t *testing.T) {
	p := NewProfiler()
	p.Record(StageScan, time.Millisecond)

	stats := p.GetStats(StageScan)
	assert.Equal(t, time.Millisecond, stats.P95)
	assert.Equal(t, time.Millisecond, stats.P99)
}

func TestUnknownStageIsEmpty(t *testing.T) {
	stats := NewProfiler().GetStats("missing")
	assert.Equal(t, 0, stats.Count)
}

func TestTimerAndReport(t *testing.T) {
	p := NewProfiler()
	p.Start(StageHighlight).Stop()
	p.Start(StagePredict).Stop()

	all := p.GetAllStats()
	require.Len(t, all, 2)
	assert.Equal(t, StageHighlight, all[0].Name)

	var buf bytes.Buffer
	p.WriteReport(&buf)
	assert.Contains(t, buf.String(), StagePredict)

	p.Reset()
	buf.Reset()
	p.WriteReport(&buf)
	assert.Contains(t, buf.String(), "No timing data")
}

func TestNilProfilerTimerIsSafe(t *testing.T) {
	var p *Profiler
	assert.NotPanics(t, func() {
		p.Start(StageScan).Stop()
	})
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500ns", FormatDuration(500*time.Nanosecond))
	assert.Equal(t, "1.5μs", FormatDuration(1500*time.Nanosecond))
	assert.Equal(t, "2.50ms", FormatDuration(2500*time.Microsecond))
	assert.Equal(t, "1.250s", FormatDuration(1250*time.Millisecond))
}
