package model

import (
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/tfidf"
)

// Example is one labelled training document.
type Example struct {
	Text  string
	Label bayes.Class
}

// Corpus is an ordered set of training documents. Duplicates are allowed.
type Corpus []Example

// Counts returns the number of ham and spam examples.
func (c Corpus) Counts() (ham, spam int) {
	for _, ex := range c {
		if ex.Label == bayes.Spam {
			spam++
		} else {
			ham++
		}
	}
	return ham, spam
}

// TrainOptions tunes a training run.
type TrainOptions struct {
	// Alpha is the Laplace smoothing constant. Zero means bayes.DefaultAlpha.
	Alpha float64
	// Now stamps the model metadata. Nil means time.Now.
	Now func() time.Time
}

// Metadata describes how a model was produced. It is informational only and
// never consulted during scoring.
type Metadata struct {
	TrainedAt     time.Time `json:"trained_at"`
	Documents     int       `json:"documents"`
	HamDocuments  int       `json:"ham_documents"`
	SpamDocuments int       `json:"spam_documents"`
	Alpha         float64   `json:"alpha"`
}

// Model is a trained TF-IDF + multinomial Naive Bayes spam classifier. A
// Model never changes after construction; retraining produces a new one.
type Model struct {
	vectorizer *tfidf.Vectorizer
	classifier *bayes.MultinomialNB
	engine     *Engine
	meta       Metadata
}

// Contribution is the weight a single term adds toward the spam class in one
// document.
type Contribution struct {
	Word  string  `json:"word"`
	Score float64 `json:"score"`
}

// Train fits a complete model on corpus in one batch: vocabulary, IDF
// weights, then the Naive Bayes parameters over the TF-IDF vectors.
func Train(corpus Corpus, opts TrainOptions) (*Model, error) {
	if len(corpus) == 0 {
		return nil, &ConfigurationError{Op: "train", Err: tfidf.ErrEmptyCorpus}
	}
	ham, spam := corpus.Counts()
	if ham == 0 || spam == 0 {
		return nil, &ConfigurationError{
			Op:  "train",
			Err: errors.Wrapf(bayes.ErrMissingClass, "corpus has %d ham and %d spam documents", ham, spam),
		}
	}

	alpha := opts.Alpha
	if alpha == 0 {
		alpha = bayes.DefaultAlpha
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	docs := make([]string, len(corpus))
	for i, ex := range corpus {
		docs[i] = ex.Text
	}

	vectorizer, err := tfidf.Fit(docs)
	if err != nil {
		return nil, &ConfigurationError{Op: "fit vectorizer", Err: err}
	}

	samples := make([]bayes.Sample, len(corpus))
	for i, ex := range corpus {
		samples[i] = bayes.Sample{Vector: vectorizer.Vectorize(ex.Text), Class: ex.Label}
	}

	classifier, err := bayes.Fit(samples, vectorizer.Features(), alpha)
	if err != nil {
		return nil, &ConfigurationError{Op: "fit classifier", Err: err}
	}

	return newModel(vectorizer, classifier, Metadata{
		TrainedAt:     now().UTC(),
		Documents:     len(corpus),
		HamDocuments:  ham,
		SpamDocuments: spam,
		Alpha:         alpha,
	}), nil
}

func newModel(v *tfidf.Vectorizer, c *bayes.MultinomialNB, meta Metadata) *Model {
	return &Model{
		vectorizer: v,
		classifier: c,
		engine:     NewEngine(v, c),
		meta:       meta,
	}
}

// Vectorizer returns the fitted TF-IDF vectorizer.
func (m *Model) Vectorizer() *tfidf.Vectorizer { return m.vectorizer }

// Classifier returns the fitted Naive Bayes classifier.
func (m *Model) Classifier() *bayes.MultinomialNB { return m.classifier }

// Engine returns the inference engine bound to this model.
func (m *Model) Engine() *Engine { return m.engine }

// Metadata returns the training metadata.
func (m *Model) Metadata() Metadata { return m.meta }

// Features returns the vocabulary size.
func (m *Model) Features() int { return m.vectorizer.Features() }

// Predict scores text with this model.
func (m *Model) Predict(text string) Prediction {
	return m.engine.Predict(text)
}

// SpamLogOdds returns feature_log_prob[spam][i] - feature_log_prob[ham][i].
func (m *Model) SpamLogOdds(i int) float64 {
	return m.classifier.LogProb(bayes.Spam, i) - m.classifier.LogProb(bayes.Ham, i)
}

// Explain lists the terms of text ordered by how strongly they push the
// document toward spam. limit <= 0 returns every known term.
func (m *Model) Explain(text string, limit int) []Contribution {
	v := m.vectorizer.Vectorize(text)
	vocab := m.vectorizer.Vocabulary()

	out := make([]Contribution, 0, v.Len())
	for k, i := range v.Indices {
		out = append(out, Contribution{
			Word:  vocab.Term(i),
			Score: m.SpamLogOdds(i) * v.Values[k],
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Word < out[b].Word
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// NormalizationError returns the largest absolute deviation from 1 among the
// exponentiated class priors and each feature distribution row.
func (m *Model) NormalizationError() float64 {
	var worst float64

	var priorSum float64
	for _, lp := range m.classifier.ClassLogPrior() {
		priorSum += math.Exp(lp)
	}
	worst = math.Abs(priorSum - 1)

	for _, row := range m.classifier.FeatureLogProb() {
		var sum float64
		for _, lp := range row {
			sum += math.Exp(lp)
		}
		if d := math.Abs(sum - 1); d > worst {
			worst = d
		}
	}
	return worst
}
