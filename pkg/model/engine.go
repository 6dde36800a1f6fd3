package model

import (
	"math"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/tfidf"
)

// Vectorizer turns raw text into a document feature vector.
type Vectorizer interface {
	Vectorize(text string) tfidf.SparseVector
}

// Classifier scores a feature vector against each class.
type Classifier interface {
	ScoreClasses(v tfidf.SparseVector) [bayes.NumClasses]float64
}

// Prediction is the outcome of scoring one document.
type Prediction struct {
	Class         bayes.Class
	IsSpam        bool
	Confidence    float64
	Probabilities [bayes.NumClasses]float64
	LogLikelihood [bayes.NumClasses]float64
}

// Engine composes a vectorizer and a classifier. It holds no mutable state,
// so a single Engine can serve concurrent callers.
type Engine struct {
	vectorizer Vectorizer
	classifier Classifier
}

// NewEngine returns an engine scoring text with v and c.
func NewEngine(v Vectorizer, c Classifier) *Engine {
	return &Engine{vectorizer: v, classifier: c}
}

// Predict vectorizes text, scores both classes and reports the winning class
// with its softmax probability rounded to four decimals. Empty or fully
// unknown text falls back to the class priors.
func (e *Engine) Predict(text string) Prediction {
	jll := e.classifier.ScoreClasses(e.vectorizer.Vectorize(text))
	proba := bayes.Softmax(jll)
	class := bayes.Argmax(jll)

	return Prediction{
		Class:         class,
		IsSpam:        class == bayes.Spam,
		Confidence:    RoundConfidence(proba[class]),
		Probabilities: proba,
		LogLikelihood: jll,
	}
}

// RoundConfidence rounds p to four decimal places and clamps it to [0, 1].
func RoundConfidence(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return math.Round(p*1e4) / 1e4
}
