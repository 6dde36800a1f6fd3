package bayes

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zpam/spamscan/pkg/tfidf"
)

// Class identifies one of the two labels. The numeric value is the row index
// used in the stored parameter arrays.
type Class int

const (
	Ham  Class = 0
	Spam Class = 1
)

// NumClasses is the number of labels the classifier handles.
const NumClasses = 2

// DefaultAlpha is the Laplace smoothing constant.
const DefaultAlpha = 1.0

var (
	// ErrMissingClass is returned when a class has no training samples.
	ErrMissingClass = errors.New("bayes: a class has no training samples")
	// ErrNoSamples is returned when fitting on zero samples.
	ErrNoSamples = errors.New("bayes: no training samples")
)

func (c Class) String() string {
	if c == Spam {
		return "spam"
	}
	return "ham"
}

// ParseClass maps a label to a class. "spam" in any case is Spam; anything
// else is Ham.
func ParseClass(label string) Class {
	if strings.EqualFold(strings.TrimSpace(label), "spam") {
		return Spam
	}
	return Ham
}

// Sample is one vectorized training document.
type Sample struct {
	Vector tfidf.SparseVector
	Class  Class
}

// MultinomialNB is a fitted two-class multinomial Naive Bayes model over
// weighted features. It is read-only after construction.
type MultinomialNB struct {
	// classLogPrior[c] = ln P(c)
	classLogPrior [NumClasses]float64
	// featureLogProb[c][t] = ln P(t|c), Laplace smoothed
	featureLogProb [NumClasses][]float64
	features       int
}

// Fit estimates class priors and per-class feature log-probabilities:
//
//	featureLogProb[c][t] = ln((Σ_d∈c w(t,d) + α) / (Σ_t' Σ_d∈c w(t',d) + α·V))
func Fit(samples []Sample, features int, alpha float64) (*MultinomialNB, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if features <= 0 {
		return nil, fmt.Errorf("bayes: feature count must be positive, got %d", features)
	}
	if alpha <= 0 {
		return nil, fmt.Errorf("bayes: smoothing alpha must be positive, got %g", alpha)
	}

	var classCount [NumClasses]int
	var featureCount [NumClasses][]float64
	for c := range featureCount {
		featureCount[c] = make([]float64, features)
	}

	for _, s := range samples {
		if s.Class != Ham && s.Class != Spam {
			return nil, fmt.Errorf("bayes: unknown class %d", s.Class)
		}
		classCount[s.Class]++
		for k, i := range s.Vector.Indices {
			if i < 0 || i >= features {
				return nil, fmt.Errorf("bayes: feature index %d outside [0, %d)", i, features)
			}
			featureCount[s.Class][i] += s.Vector.Values[k]
		}
	}

	for c, n := range classCount {
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingClass, Class(c))
		}
	}

	nb := &MultinomialNB{features: features}
	logTotal := math.Log(float64(len(samples)))
	for c := 0; c < NumClasses; c++ {
		nb.classLogPrior[c] = math.Log(float64(classCount[c])) - logTotal

		var smoothedTotal float64
		for _, fc := range featureCount[c] {
			smoothedTotal += fc + alpha
		}
		logDenom := math.Log(smoothedTotal)

		row := make([]float64, features)
		for i, fc := range featureCount[c] {
			row[i] = math.Log(fc+alpha) - logDenom
		}
		nb.featureLogProb[c] = row
	}

	return nb, nil
}

// New rebuilds a classifier from stored parameters. classLogPrior must hold
// exactly two values and featureLogProb two rows of equal length.
func New(classLogPrior []float64, featureLogProb [][]float64) (*MultinomialNB, error) {
	if len(classLogPrior) != NumClasses {
		return nil, fmt.Errorf("bayes: class_log_prior has %d entries, want %d", len(classLogPrior), NumClasses)
	}
	if len(featureLogProb) != NumClasses {
		return nil, fmt.Errorf("bayes: feature_log_prob has %d rows, want %d", len(featureLogProb), NumClasses)
	}
	features := len(featureLogProb[0])
	if len(featureLogProb[1]) != features {
		return nil, fmt.Errorf("bayes: feature_log_prob rows differ in length (%d vs %d)", features, len(featureLogProb[1]))
	}

	nb := &MultinomialNB{features: features}
	for c := 0; c < NumClasses; c++ {
		nb.classLogPrior[c] = classLogPrior[c]
		row := make([]float64, features)
		copy(row, featureLogProb[c])
		nb.featureLogProb[c] = row
	}
	return nb, nil
}

// Features returns the number of features per class row.
func (nb *MultinomialNB) Features() int {
	return nb.features
}

// ClassLogPrior returns a copy of the class log-priors, ordered [ham, spam].
func (nb *MultinomialNB) ClassLogPrior() []float64 {
	return []float64{nb.classLogPrior[Ham], nb.classLogPrior[Spam]}
}

// FeatureLogProb returns a copy of the feature log-probabilities.
func (nb *MultinomialNB) FeatureLogProb() [][]float64 {
	out := make([][]float64, NumClasses)
	for c := range out {
		out[c] = make([]float64, nb.features)
		copy(out[c], nb.featureLogProb[c])
	}
	return out
}

// LogProb returns ln P(term i | class c).
func (nb *MultinomialNB) LogProb(c Class, i int) float64 {
	return nb.featureLogProb[c][i]
}

// ScoreClasses returns the joint log-likelihood of each class:
//
//	L(c) = classLogPrior[c] + Σ_t w(t)·featureLogProb[c][t]
func (nb *MultinomialNB) ScoreClasses(v tfidf.SparseVector) [NumClasses]float64 {
	var jll [NumClasses]float64
	for c := 0; c < NumClasses; c++ {
		jll[c] = nb.classLogPrior[c] + v.Dot(nb.featureLogProb[c])
	}
	return jll
}

// Predict returns the most likely class and the normalised class
// probabilities. Ties go to Ham.
func (nb *MultinomialNB) Predict(v tfidf.SparseVector) (Class, [NumClasses]float64) {
	jll := nb.ScoreClasses(v)
	return Argmax(jll), Softmax(jll)
}

// Argmax returns the class with the highest score, Ham on ties.
func Argmax(scores [NumClasses]float64) Class {
	if scores[Spam] > scores[Ham] {
		return Spam
	}
	return Ham
}

// Softmax normalises log-likelihoods into probabilities that sum to one.
func Softmax(scores [NumClasses]float64) [NumClasses]float64 {
	top := scores[0]
	for _, s := range scores[1:] {
		if s > top {
			top = s
		}
	}

	var out [NumClasses]float64
	var sum float64
	for c, s := range scores {
		out[c] = math.Exp(s - top)
		sum += out[c]
	}
	for c := range out {
		out[c] /= sum
	}
	return out
}
