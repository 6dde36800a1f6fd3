package words

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/zpam/spamscan/pkg/model"
)

// Entry is one scored vocabulary word.
type Entry struct {
	Word  string  `json:"word"`
	Score float64 `json:"score"`
}

// Table lists words by descending spam log-odds.
type Table []Entry

// DefaultSeedWords is used when no table derived from a model is available.
var DefaultSeedWords = []string{
	"free", "win", "winner", "prize", "urgent", "offer", "click",
	"limited", "bonus", "gift", "deal", "lottery", "congratulations",
	"selected", "opportunity", "promotion",
}

// FromModel scores every vocabulary term by
// feature_log_prob[spam][i] - feature_log_prob[ham][i].
func FromModel(m *model.Model) Table {
	vocab := m.Vectorizer().Vocabulary()
	table := make(Table, vocab.Size())
	for i := range table {
		table[i] = Entry{Word: vocab.Term(i), Score: m.SpamLogOdds(i)}
	}
	table.sort()
	return table
}

// SeedTable builds a table from a plain word list, every word scoring 1.
func SeedTable(seed []string) Table {
	table := make(Table, 0, len(seed))
	seen := make(map[string]struct{}, len(seed))
	for _, w := range seed {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		table = append(table, Entry{Word: w, Score: 1})
	}
	table.sort()
	return table
}

// DefaultTable returns the fallback seed table.
func DefaultTable() Table {
	return SeedTable(DefaultSeedWords)
}

// sort orders by score descending, then word ascending.
func (t Table) sort() {
	sort.SliceStable(t, func(a, b int) bool {
		if t[a].Score != t[b].Score {
			return t[a].Score > t[b].Score
		}
		return t[a].Word < t[b].Word
	})
}

// Top returns at most n leading entries. n <= 0 returns the whole table.
func (t Table) Top(n int) Table {
	if n <= 0 || n >= len(t) {
		return t
	}
	return t[:n]
}

// Suspicious returns the entries with a positive score, i.e. words more
// likely under spam than under ham.
func (t Table) Suspicious() Table {
	out := make(Table, 0, len(t))
	for _, e := range t {
		if e.Score > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Encode writes the table as a JSON array of {word, score} objects.
func (t Table) Encode(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if t == nil {
		t = Table{}
	}
	if err := encoder.Encode(t); err != nil {
		return errors.Wrap(err, "failed to encode word table")
	}
	return nil
}

// Decode reads a JSON word table and re-sorts it.
func Decode(r io.Reader) (Table, error) {
	var table Table
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, errors.Wrap(err, "failed to decode word table")
	}
	for i, e := range table {
		if strings.TrimSpace(e.Word) == "" {
			return nil, errors.Errorf("word table entry %d has an empty word", i)
		}
		if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) {
			return nil, errors.Errorf("word table entry %q has a non-finite score", e.Word)
		}
		table[i].Word = strings.ToLower(strings.TrimSpace(e.Word))
	}
	table.sort()
	return table, nil
}

// Save writes the table to path.
func (t Table) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create word table file")
	}
	defer file.Close()

	return t.Encode(file)
}

// Load reads a table from path. The returned error wraps os.ErrNotExist when
// the file is missing so callers can fall back to DefaultTable.
func Load(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open word table")
	}
	defer file.Close()

	return Decode(file)
}
