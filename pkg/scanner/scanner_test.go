package scanner

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpam/spamscan/pkg/model"
	"github.com/zpam/spamscan/pkg/profiler"
	"github.com/zpam/spamscan/pkg/words"
)

func trainSample(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Train(model.SampleCorpus(), model.TrainOptions{})
	require.NoError(t, err)
	return m
}

func writeArtifacts(t *testing.T, m *model.Model, withWords bool) (string, string) {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "spam-model.json")
	wordsPath := filepath.Join(dir, "suspicious-words.json")
	require.NoError(t, m.Save(modelPath))
	if withWords {
		require.NoError(t, words.FromModel(m).Save(wordsPath))
	}
	return modelPath, wordsPath
}

func TestScanBeforeLoad(t *testing.T) {
	s := New(nil)
	_, err := s.Scan("hello")
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = s.Explain("hello", 5)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestScanSpamMessage(t *testing.T) {
	m := trainSample(t)
	s := New(nil)
	s.Swap(NewSnapshot(m, words.FromModel(m), "test", 1, Options{}))

	res, err := s.Scan("Win a free car now!")
	require.NoError(t, err)

	assert.True(t, res.IsSpam)
	assert.InDelta(t, 0.6861, res.Confidence, 1e-9)
	assert.Equal(t, []string{"win", "free", "car", "now"}, res.SuspiciousWordsFound)
	assert.Equal(t, 4, res.SuspiciousWordCount)
	assert.Equal(t, "<mark>Win</mark> a <mark>free</mark> <mark>car</mark> <mark>now</mark>!", res.HighlightedText)
}

func TestScanHamMessage(t *testing.T) {
	m := trainSample(t)
	s := New(nil)
	s.Swap(NewSnapshot(m, words.FromModel(m), "test", 1, Options{}))

	res, err := s.Scan("Hello, let's catch up tomorrow")
	require.NoError(t, err)

	assert.False(t, res.IsSpam)
	assert.InDelta(t, 0.7024, res.Confidence, 1e-9)
	assert.Empty(t, res.SuspiciousWordsFound)
	assert.Equal(t, "Hello, let's catch up tomorrow", res.HighlightedText)
}

func TestResultJSONShape(t *testing.T) {
	m := trainSample(t)
	s := New(nil)
	s.Swap(NewSnapshot(m, words.FromModel(m), "test", 1, Options{}))

	res, err := s.Scan("")
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"is_spam": false,
		"confidence": 0.5,
		"suspicious_words_found": [],
		"suspicious_word_count": 0,
		"highlighted_text": ""
	}`, string(data))
}

func TestLoadFromFiles(t *testing.T) {
	m := trainSample(t)
	modelPath, wordsPath := writeArtifacts(t, m, true)

	snap, err := LoadFromFiles(modelPath, wordsPath, Options{MaxWords: 2})
	require.NoError(t, err)

	assert.Equal(t, m.Features(), snap.Model.Features())
	assert.Len(t, snap.Table, m.Features())
	assert.Equal(t, 2, snap.Highlighter.Words())
	assert.Equal(t, "file:"+modelPath, snap.Source)
	assert.False(t, snap.LoadedAt.IsZero())
}

func TestLoadFromFilesMissingWordsFallsBackToSeeds(t *testing.T) {
	m := trainSample(t)
	modelPath, wordsPath := writeArtifacts(t, m, false)

	snap, err := LoadFromFiles(modelPath, wordsPath, Options{})
	require.NoError(t, err)
	assert.Equal(t, words.DefaultTable(), snap.Table)

	snap, err = LoadFromFiles(modelPath, wordsPath, Options{SeedWords: []string{"Prize"}})
	require.NoError(t, err)
	assert.Equal(t, words.Table{{Word: "prize", Score: 1}}, snap.Table)

	s := New(nil)
	s.Swap(snap)
	res, err := s.Scan("Claim your PRIZE")
	require.NoError(t, err)
	assert.Equal(t, "Claim your <mark>PRIZE</mark>", res.HighlightedText)
}

func TestLoadFromFilesMissingModel(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.json"), "", Options{})
	require.Error(t, err)

	var cfgErr *model.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFromFilesMalformedWords(t *testing.T) {
	m := trainSample(t)
	modelPath, wordsPath := writeArtifacts(t, m, false)
	require.NoError(t, os.WriteFile(wordsPath, []byte("{not json"), 0644))

	_, err := LoadFromFiles(modelPath, wordsPath, Options{})
	assert.Error(t, err)
}

func TestLoadFromBytes(t *testing.T) {
	m := trainSample(t)
	modelDoc, err := m.Marshal()
	require.NoError(t, err)

	snap, err := LoadFromBytes(modelDoc, nil, "redis", 7, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), snap.Version)
	assert.Equal(t, words.DefaultTable(), snap.Table)

	_, err = LoadFromBytes([]byte(`{"vocabulary":{}}`), nil, "redis", 8, Options{})
	var formatErr *model.ModelFormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestSwapReturnsPrevious(t *testing.T) {
	m := trainSample(t)
	s := New(nil)

	first := NewSnapshot(m, nil, "a", 1, Options{})
	second := NewSnapshot(m, nil, "b", 2, Options{})

	assert.Nil(t, s.Swap(first))
	assert.Same(t, first, s.Swap(second))
	assert.Same(t, second, s.Current())
}

func TestConcurrentScanDuringSwap(t *testing.T) {
	m := trainSample(t)
	prof := profiler.NewProfiler()
	s := New(prof)
	s.Swap(NewSnapshot(m, words.FromModel(m), "a", 1, Options{}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res, err := s.Scan("Win a free car now!")
				if assert.NoError(t, err) {
					assert.True(t, res.IsSpam)
					assert.InDelta(t, 0.6861, res.Confidence, 1e-9)
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		s.Swap(NewSnapshot(m, words.FromModel(m), "b", int64(i+2), Options{}))
	}
	wg.Wait()

	assert.Equal(t, 400, prof.GetStats(profiler.StageScan).Count)
	assert.Equal(t, 400, prof.GetStats(profiler.StagePredict).Count)
}

func TestExplain(t *testing.T) {
	m := trainSample(t)
	s := New(nil)
	s.Swap(NewSnapshot(m, nil, "a", 1, Options{}))

	contributions, err := s.Explain("Win a free car now! Meeting", 2)
	require.NoError(t, err)
	require.Len(t, contributions, 2)
	assert.Greater(t, contributions[0].Score, 0.0)
}
