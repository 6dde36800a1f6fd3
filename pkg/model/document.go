package model

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/tfidf"
)

// FormatVersion is the model document version written by this package.
const FormatVersion = 1

// Document is the portable, library-independent form of a Model.
type Document struct {
	Version        int            `json:"version,omitempty"`
	Vocabulary     map[string]int `json:"vocabulary"`
	IDF            []float64      `json:"idf"`
	ClassLogPrior  []float64      `json:"class_log_prior"`
	FeatureLogProb [][]float64    `json:"feature_log_prob"`
	Metadata       *Metadata      `json:"metadata,omitempty"`
}

// Document exports the model parameters.
func (m *Model) Document() *Document {
	meta := m.meta
	return &Document{
		Version:        FormatVersion,
		Vocabulary:     m.vectorizer.Vocabulary().Map(),
		IDF:            m.vectorizer.IDF(),
		ClassLogPrior:  m.classifier.ClassLogPrior(),
		FeatureLogProb: m.classifier.FeatureLogProb(),
		Metadata:       &meta,
	}
}

// FromDocument rebuilds a Model from its portable form. Any dimension
// mismatch yields a *ModelFormatError.
func FromDocument(doc *Document) (*Model, error) {
	if doc == nil {
		return nil, formatErr("document", "missing")
	}
	if doc.Version != 0 && doc.Version != FormatVersion {
		return nil, formatErr("version", "unsupported version %d", doc.Version)
	}

	size := len(doc.Vocabulary)
	if size == 0 {
		return nil, formatErr("vocabulary", "empty")
	}
	vocab, err := tfidf.VocabularyFromIndex(doc.Vocabulary)
	if err != nil {
		return nil, &ModelFormatError{Field: "vocabulary", Reason: "indices are not contiguous", Err: err}
	}

	if len(doc.IDF) != size {
		return nil, formatErr("idf", "length %d, vocabulary size %d", len(doc.IDF), size)
	}
	if len(doc.ClassLogPrior) != bayes.NumClasses {
		return nil, formatErr("class_log_prior", "length %d, want %d", len(doc.ClassLogPrior), bayes.NumClasses)
	}
	if len(doc.FeatureLogProb) != bayes.NumClasses {
		return nil, formatErr("feature_log_prob", "%d rows, want %d", len(doc.FeatureLogProb), bayes.NumClasses)
	}
	for c, row := range doc.FeatureLogProb {
		if len(row) != size {
			return nil, formatErr("feature_log_prob", "row %d has length %d, vocabulary size %d", c, len(row), size)
		}
	}

	if err := checkFinite("idf", doc.IDF); err != nil {
		return nil, err
	}
	if err := checkFinite("class_log_prior", doc.ClassLogPrior); err != nil {
		return nil, err
	}
	for _, row := range doc.FeatureLogProb {
		if err := checkFinite("feature_log_prob", row); err != nil {
			return nil, err
		}
	}

	vectorizer, err := tfidf.NewVectorizer(vocab, doc.IDF)
	if err != nil {
		return nil, &ModelFormatError{Field: "idf", Reason: "invalid", Err: err}
	}
	classifier, err := bayes.New(doc.ClassLogPrior, doc.FeatureLogProb)
	if err != nil {
		return nil, &ModelFormatError{Field: "feature_log_prob", Reason: "invalid", Err: err}
	}

	var meta Metadata
	if doc.Metadata != nil {
		meta = *doc.Metadata
	}
	return newModel(vectorizer, classifier, meta), nil
}

func checkFinite(field string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return formatErr(field, "non-finite value at index %d", i)
		}
	}
	return nil
}

// Encode writes the model document as JSON.
func (m *Model) Encode(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m.Document()); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// Decode reads a model document and rebuilds the Model.
func Decode(r io.Reader) (*Model, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ModelFormatError{Field: "document", Reason: "invalid JSON", Err: err}
	}
	return FromDocument(&doc)
}

// Unmarshal rebuilds a Model from a JSON document held in memory.
func Unmarshal(data []byte) (*Model, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ModelFormatError{Field: "document", Reason: "invalid JSON", Err: err}
	}
	return FromDocument(&doc)
}

// Marshal returns the JSON model document.
func (m *Model) Marshal() ([]byte, error) {
	data, err := json.Marshal(m.Document())
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode model")
	}
	return data, nil
}

// Save writes the model document to path. The file is written next to its
// destination and renamed into place so readers never see a partial file.
func (m *Model) Save(path string) error {
	return writeFileAtomic(path, m.Encode)
}

// Load reads a model document from path. A missing or unreadable file is a
// *ConfigurationError; a malformed one is a *ModelFormatError.
func Load(path string) (*Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Op: "load model", Err: err}
	}
	defer file.Close()

	return Decode(file)
}

// writeFileAtomic writes through a temporary file in the target directory.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create model directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create model file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close model file")
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return errors.Wrap(err, "failed to set model file permissions")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "failed to move model file into place")
	}
	return nil
}
