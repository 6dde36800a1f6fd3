// Package feedback records user verdicts on predictions so they can be
// folded back into training.
package feedback

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/dataset"
)

// Verdict is the user's judgement of a prediction.
type Verdict string

const (
	Correct   Verdict = "correct"
	Incorrect Verdict = "incorrect"
)

// ErrInvalidInput marks rejected feedback submissions.
var ErrInvalidInput = errors.New("invalid feedback")

// ParseVerdict accepts "correct" or "incorrect" in any case.
func ParseVerdict(s string) (Verdict, error) {
	switch v := Verdict(strings.ToLower(strings.TrimSpace(s))); v {
	case Correct, Incorrect:
		return v, nil
	default:
		return "", errors.Wrapf(ErrInvalidInput, "unknown verdict %q", s)
	}
}

// ParsePrediction accepts exactly "spam" or "ham" in any case.
func ParsePrediction(s string) (bayes.Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spam":
		return bayes.Spam, nil
	case "ham":
		return bayes.Ham, nil
	default:
		return bayes.Ham, errors.Wrapf(ErrInvalidInput, "unknown prediction %q", s)
	}
}

// Entry is one stored verdict.
type Entry struct {
	ID         int64       `json:"id"`
	Text       string      `json:"text"`
	Prediction bayes.Class `json:"-"`
	Verdict    Verdict     `json:"feedback"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Label is the class the message should have had: the prediction when the
// verdict is correct, the other class otherwise.
func (e Entry) Label() bayes.Class {
	if e.Verdict == Incorrect {
		if e.Prediction == bayes.Spam {
			return bayes.Ham
		}
		return bayes.Spam
	}
	return e.Prediction
}

// Store persists feedback in a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create feedback directory")
	}

	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open feedback database")
	}

	store, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open database and applies the schema.
func NewStore(db *sql.DB) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Migrate creates the feedback schema if it is missing.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS feedback (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			prediction TEXT NOT NULL,
			verdict TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS feedback_created_idx ON feedback(created_at);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrap(err, "failed to run migration statement")
		}
	}
	return nil
}

// Add stores one verdict.
func (s *Store) Add(ctx context.Context, text string, prediction bayes.Class, verdict Verdict) (Entry, error) {
	if strings.TrimSpace(text) == "" {
		return Entry{}, errors.Wrap(ErrInvalidInput, "text is empty")
	}
	if verdict != Correct && verdict != Incorrect {
		return Entry{}, errors.Wrapf(ErrInvalidInput, "unknown verdict %q", verdict)
	}

	entry := Entry{
		Text:       text,
		Prediction: prediction,
		Verdict:    verdict,
		CreatedAt:  s.now().UTC(),
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (text, prediction, verdict, created_at) VALUES (?, ?, ?, ?)`,
		entry.Text, entry.Prediction.String(), string(entry.Verdict), entry.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to insert feedback")
	}

	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return entry, nil
}

// All returns every entry in insertion order.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, prediction, verdict, created_at FROM feedback ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query feedback")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                   Entry
			prediction, created string
			verdict             string
		)
		if err := rows.Scan(&e.ID, &e.Text, &prediction, &verdict, &created); err != nil {
			return nil, errors.Wrap(err, "failed to scan feedback row")
		}
		e.Prediction = bayes.ParseClass(prediction)
		e.Verdict = Verdict(verdict)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "failed to iterate feedback")
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count feedback")
	}
	return n, nil
}

// Records converts stored verdicts to labelled training rows.
func (s *Store) Records(ctx context.Context) ([]dataset.Record, error) {
	entries, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]dataset.Record, len(entries))
	for i, e := range entries {
		records[i] = dataset.Record{Message: e.Text, Category: e.Label().String()}
	}
	return records, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
