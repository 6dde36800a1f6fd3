// Package scanner serves predictions and highlighting from an immutable
// snapshot that can be replaced atomically while requests are in flight.
package scanner

import (
	"bytes"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zpam/spamscan/pkg/model"
	"github.com/zpam/spamscan/pkg/profiler"
	"github.com/zpam/spamscan/pkg/words"
)

// ErrNotReady is returned by Scan before the first snapshot is installed.
var ErrNotReady = errors.New("no model loaded")

// Options controls how snapshots build their highlighter.
type Options struct {
	OpenTag  string
	CloseTag string
	MaxWords int

	// Used instead of words.DefaultSeedWords when the word table is missing
	SeedWords []string
}

func (o Options) highlighterOptions() []words.Option {
	var opts []words.Option
	if o.OpenTag != "" || o.CloseTag != "" {
		opts = append(opts, words.WithTags(o.OpenTag, o.CloseTag))
	}
	if o.MaxWords > 0 {
		opts = append(opts, words.WithMaxWords(o.MaxWords))
	}
	return opts
}

func (o Options) seedTable() words.Table {
	if len(o.SeedWords) > 0 {
		return words.SeedTable(o.SeedWords)
	}
	return words.DefaultTable()
}

// Snapshot is one loaded model with its word table. It is never mutated
// after construction.
type Snapshot struct {
	Model       *model.Model
	Table       words.Table
	Highlighter *words.Highlighter
	Source      string
	Version     int64
	LoadedAt    time.Time
}

// NewSnapshot builds the highlighter for table and stamps the load time.
// A nil table falls back to the seed list.
func NewSnapshot(m *model.Model, table words.Table, source string, version int64, opts Options) *Snapshot {
	if table == nil {
		table = opts.seedTable()
	}
	return &Snapshot{
		Model:       m,
		Table:       table,
		Highlighter: words.NewHighlighter(table, opts.highlighterOptions()...),
		Source:      source,
		Version:     version,
		LoadedAt:    time.Now(),
	}
}

// LoadFromFiles loads the model document at modelPath and the word table at
// wordsPath. The model is required; a missing word table is logged and
// replaced by the seed list. An empty wordsPath skips straight to the seeds.
func LoadFromFiles(modelPath, wordsPath string, opts Options) (*Snapshot, error) {
	m, err := model.Load(modelPath)
	if err != nil {
		return nil, err
	}

	var table words.Table
	if wordsPath != "" {
		table, err = words.Load(wordsPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.WithField("path", wordsPath).Warn("suspicious words file not found, using seed list")
			table = nil
		case err != nil:
			return nil, err
		}
	}

	return NewSnapshot(m, table, "file:"+modelPath, 0, opts), nil
}

// LoadFromBytes decodes a model document and an optional word table
// document, as fetched from the registry.
func LoadFromBytes(modelDoc, wordsDoc []byte, source string, version int64, opts Options) (*Snapshot, error) {
	m, err := model.Unmarshal(modelDoc)
	if err != nil {
		return nil, err
	}

	var table words.Table
	if len(wordsDoc) > 0 {
		table, err = words.Decode(bytes.NewReader(wordsDoc))
		if err != nil {
			return nil, err
		}
	} else {
		log.WithField("source", source).Warn("no suspicious words document, using seed list")
	}

	return NewSnapshot(m, table, source, version, opts), nil
}

// Result is the payload returned for one scanned message.
type Result struct {
	IsSpam               bool     `json:"is_spam"`
	Confidence           float64  `json:"confidence"`
	SuspiciousWordsFound []string `json:"suspicious_words_found"`
	SuspiciousWordCount  int      `json:"suspicious_word_count"`
	HighlightedText      string   `json:"highlighted_text"`
}

// Scanner scores messages against the current snapshot.
type Scanner struct {
	current  atomic.Pointer[Snapshot]
	profiler *profiler.Profiler
}

// New returns a scanner with no snapshot. prof may be nil.
func New(prof *profiler.Profiler) *Scanner {
	return &Scanner{profiler: prof}
}

// Swap installs snap and returns the snapshot it replaced.
func (s *Scanner) Swap(snap *Snapshot) *Snapshot {
	prev := s.current.Swap(snap)

	fields := log.Fields{
		"source":   snap.Source,
		"version":  snap.Version,
		"features": snap.Model.Features(),
		"words":    snap.Highlighter.Words(),
	}
	if prev == nil {
		log.WithFields(fields).Info("model loaded")
	} else {
		log.WithFields(fields).Info("model reloaded")
	}
	return prev
}

// Current returns the installed snapshot or nil.
func (s *Scanner) Current() *Snapshot {
	return s.current.Load()
}

// Scan classifies text and highlights its suspicious words. Both steps read
// the same snapshot even if a swap happens concurrently.
func (s *Scanner) Scan(text string) (*Result, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotReady
	}

	total := s.profiler.Start(profiler.StageScan)
	defer total.Stop()

	t := s.profiler.Start(profiler.StagePredict)
	prediction := snap.Model.Predict(text)
	t.Stop()

	t = s.profiler.Start(profiler.StageHighlight)
	match := snap.Highlighter.Highlight(text)
	t.Stop()

	return &Result{
		IsSpam:               prediction.IsSpam,
		Confidence:           prediction.Confidence,
		SuspiciousWordsFound: match.Found,
		SuspiciousWordCount:  match.Count,
		HighlightedText:      match.Text,
	}, nil
}

// Explain returns the words of text that push it hardest toward spam.
func (s *Scanner) Explain(text string, limit int) ([]model.Contribution, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap.Model.Explain(text, limit), nil
}
