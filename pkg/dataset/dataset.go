// Package dataset reads labelled training messages from CSV files and from
// directories of raw emails.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/model"
)

// Column names of the training CSV, matched case-insensitively
const (
	MessageColumn  = "Message"
	CategoryColumn = "Category"
)

// Record is one labelled row.
type Record struct {
	Message  string
	Category string
}

// Class maps the category to a class: "spam" in any case is spam,
// everything else is ham.
func (r Record) Class() bayes.Class {
	return bayes.ParseClass(r.Category)
}

// Read parses a CSV with a header row naming the message and category columns
// in any order. Extra columns are ignored.
func Read(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("csv has no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv header")
	}

	msgCol, catCol := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case strings.EqualFold(name, MessageColumn):
			msgCol = i
		case strings.EqualFold(name, CategoryColumn):
			catCol = i
		}
	}
	if msgCol < 0 || catCol < 0 {
		return nil, errors.Errorf("csv header must contain %q and %q columns", MessageColumn, CategoryColumn)
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read csv row %d", line)
		}
		if msgCol >= len(row) || catCol >= len(row) {
			return nil, errors.Errorf("csv row %d has %d fields", line, len(row))
		}
		records = append(records, Record{Message: row[msgCol], Category: strings.TrimSpace(row[catCol])})
	}

	return records, nil
}

// Load reads a training CSV from path.
func Load(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open dataset")
	}
	defer file.Close()

	records, err := Read(file)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", path)
	}
	return records, nil
}

// LoadWithFeedback reads the main dataset and appends the feedback CSV when
// one exists. A missing feedback file is logged and skipped; rows are not
// de-duplicated.
func LoadWithFeedback(dataPath, feedbackPath string) ([]Record, error) {
	records, err := Load(dataPath)
	if err != nil {
		return nil, err
	}
	if feedbackPath == "" {
		return records, nil
	}

	feedback, err := Load(feedbackPath)
	if errors.Is(err, os.ErrNotExist) {
		log.WithField("path", feedbackPath).Warn("feedback file not found, training on main dataset only")
		return records, nil
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"path": feedbackPath, "rows": len(feedback)}).Info("merged feedback rows")
	return append(records, feedback...), nil
}

// Write emits records as a Message,Category CSV.
func Write(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{MessageColumn, CategoryColumn}); err != nil {
		return errors.Wrap(err, "failed to write csv header")
	}
	for _, r := range records {
		if err := writer.Write([]string{r.Message, r.Category}); err != nil {
			return errors.Wrap(err, "failed to write csv row")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush csv")
}

// Save writes records to path.
func Save(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create csv")
	}
	if err := Write(file, records); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ToCorpus converts records to training examples.
func ToCorpus(records []Record) model.Corpus {
	corpus := make(model.Corpus, len(records))
	for i, r := range records {
		corpus[i] = model.Example{Text: r.Message, Label: r.Class()}
	}
	return corpus
}

// LoadDir walks dir and turns every email file into a record labelled with
// class. Files that fail to parse are logged and skipped.
func LoadDir(dir string, class bayes.Class) ([]Record, error) {
	parser := email.NewParser()
	var records []Record

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".eml" && ext != ".msg" && ext != ".email" && ext != "" {
			return nil
		}

		parsed, err := parser.ParseFromFile(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("skipping unparseable email")
			return nil
		}

		records = append(records, Record{Message: parsed.Text(), Category: class.String()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", dir)
	}

	return records, nil
}
