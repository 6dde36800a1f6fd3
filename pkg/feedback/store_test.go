package feedback

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/dataset"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// every pooled connection to :memory: would see its own database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	return store
}

func TestParseVerdict(t *testing.T) {
	v, err := ParseVerdict(" Correct ")
	require.NoError(t, err)
	assert.Equal(t, Correct, v)

	v, err = ParseVerdict("INCORRECT")
	require.NoError(t, err)
	assert.Equal(t, Incorrect, v)

	_, err = ParseVerdict("maybe")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParsePrediction(t *testing.T) {
	c, err := ParsePrediction("Spam")
	require.NoError(t, err)
	assert.Equal(t, bayes.Spam, c)

	c, err = ParsePrediction("ham")
	require.NoError(t, err)
	assert.Equal(t, bayes.Ham, c)

	_, err = ParsePrediction("unknown")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEntryLabel(t *testing.T) {
	tests := []struct {
		prediction bayes.Class
		verdict    Verdict
		want       bayes.Class
	}{
		{bayes.Spam, Correct, bayes.Spam},
		{bayes.Ham, Correct, bayes.Ham},
		{bayes.Spam, Incorrect, bayes.Ham},
		{bayes.Ham, Incorrect, bayes.Spam},
	}
	for _, tt := range tests {
		e := Entry{Prediction: tt.prediction, Verdict: tt.verdict}
		assert.Equal(t, tt.want, e.Label(), "%s/%s", tt.prediction, tt.verdict)
	}
}

func TestStoreAddAndAll(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	first, err := store.Add(ctx, "Win a free car now!", bayes.Spam, Correct)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)

	_, err = store.Add(ctx, "Meeting minutes attached", bayes.Spam, Incorrect)
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Win a free car now!", entries[0].Text)
	assert.Equal(t, bayes.Spam, entries[0].Prediction)
	assert.Equal(t, Correct, entries[0].Verdict)
	assert.True(t, entries[0].CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	records, err := store.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dataset.Record{
		{Message: "Win a free car now!", Category: "spam"},
		{Message: "Meeting minutes attached", Category: "ham"},
	}, records)
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.Add(ctx, "   ", bayes.Spam, Correct)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = store.Add(ctx, "text", bayes.Spam, Verdict("unsure"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOpenFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "feedback.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Add(ctx, "Your project update is due", bayes.Ham, Correct)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
