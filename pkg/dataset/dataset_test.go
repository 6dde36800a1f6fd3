package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Record
		wantErr bool
	}{
		{
			name:  "Standard header",
			input: "Category,Message\nspam,Win a free car now!\nham,\"Hello, let's catch up tomorrow\"\n",
			want: []Record{
				{Message: "Win a free car now!", Category: "spam"},
				{Message: "Hello, let's catch up tomorrow", Category: "ham"},
			},
		},
		{
			name:  "Case-insensitive header with extra column",
			input: "id,MESSAGE,category\n1,Meeting minutes attached, Ham \n",
			want:  []Record{{Message: "Meeting minutes attached", Category: "Ham"}},
		},
		{
			name:  "Byte order mark",
			input: "\ufeffMessage,Category\nhi,ham\n",
			want:  []Record{{Message: "hi", Category: "ham"}},
		},
		{
			name:    "Missing column",
			input:   "Text,Label\nhi,ham\n",
			wantErr: true,
		},
		{
			name:    "Empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "Short row",
			input:   "Message,Category\nonly-one-field\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordClass(t *testing.T) {
	assert.Equal(t, bayes.Spam, Record{Category: "SPAM"}.Class())
	assert.Equal(t, bayes.Ham, Record{Category: "ham"}.Class())
	assert.Equal(t, bayes.Ham, Record{Category: "unknown"}.Class())
}

func TestWriteReadRoundTrip(t *testing.T) {
	records := []Record{
		{Message: `He said "free", twice`, Category: "spam"},
		{Message: "line one\nline two", Category: "ham"},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))
	assert.True(t, strings.HasPrefix(buf.String(), "Message,Category\n"))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestLoadWithFeedback(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "spam.csv", "Message,Category\nWin a free car now!,spam\nMeeting minutes attached,ham\n")
	feedback := writeFile(t, dir, "feedback.csv", "Message,Category\nWin a free car now!,spam\n")

	records, err := LoadWithFeedback(data, feedback)
	require.NoError(t, err)
	assert.Len(t, records, 3, "feedback rows are appended without de-duplication")

	records, err = LoadWithFeedback(data, filepath.Join(dir, "missing.csv"))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = LoadWithFeedback(data, "")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = LoadWithFeedback(filepath.Join(dir, "missing.csv"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveAndToCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	records := []Record{
		{Message: "Win a free car now!", Category: "spam"},
		{Message: "Your project update is due", Category: "ham"},
	}
	require.NoError(t, Save(path, records))

	loaded, err := Load(path)
	require.NoError(t, err)

	corpus := ToCorpus(loaded)
	assert.Equal(t, model.Corpus{
		{Text: "Win a free car now!", Label: bayes.Spam},
		{Text: "Your project update is due", Label: bayes.Ham},
	}, corpus)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.eml", "Subject: Win a prize\r\n\r\nClick here\r\n")
	writeFile(t, dir, "2", "Subject: Limited offer\r\n\r\nAct now\r\n")
	writeFile(t, dir, "notes.txt", "not an email")
	writeFile(t, dir, "broken.eml", "no header separator and no colon")

	records, err := LoadDir(dir, bayes.Spam)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "spam", r.Category)
	}
	assert.Equal(t, "Win a prize\n\nClick here", records[0].Message)

	_, err = LoadDir(filepath.Join(dir, "missing"), bayes.Ham)
	assert.Error(t, err)
}
