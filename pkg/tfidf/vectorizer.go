package tfidf

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrEmptyCorpus is returned when fitting on zero documents.
	ErrEmptyCorpus = errors.New("tfidf: empty corpus")
	// ErrEmptyVocabulary is returned when no document yields a token.
	ErrEmptyVocabulary = errors.New("tfidf: corpus produced an empty vocabulary")
)

// SparseVector holds the non-zero components of a document vector, sorted by
// ascending index.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Len returns the number of non-zero components.
func (s SparseVector) Len() int {
	return len(s.Indices)
}

// Dot returns the dot product with a dense row.
func (s SparseVector) Dot(dense []float64) float64 {
	var sum float64
	for k, i := range s.Indices {
		sum += s.Values[k] * dense[i]
	}
	return sum
}

// Vectorizer turns text into L2-normalised TF-IDF vectors over a fixed
// vocabulary. It is read-only after construction and safe for concurrent use.
type Vectorizer struct {
	vocab *Vocabulary
	idf   []float64
}

// Fit builds the vocabulary and smoothed IDF weights from a corpus:
//
//	idf(t) = ln((1 + n) / (1 + df(t))) + 1
func Fit(docs []string) (*Vectorizer, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}

	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	vocab := NewVocabulary(terms)

	n := float64(len(docs))
	idf := make([]float64, vocab.Size())
	for i := range idf {
		idf[i] = math.Log((1+n)/(1+float64(df[vocab.Term(i)]))) + 1
	}

	return &Vectorizer{vocab: vocab, idf: idf}, nil
}

// NewVectorizer rebuilds a fitted vectorizer from stored parameters.
func NewVectorizer(vocab *Vocabulary, idf []float64) (*Vectorizer, error) {
	if vocab == nil {
		return nil, errors.New("tfidf: nil vocabulary")
	}
	if len(idf) != vocab.Size() {
		return nil, fmt.Errorf("tfidf: idf has %d weights, vocabulary has %d terms", len(idf), vocab.Size())
	}
	weights := make([]float64, len(idf))
	copy(weights, idf)
	return &Vectorizer{vocab: vocab, idf: weights}, nil
}

// Vocabulary returns the fitted vocabulary.
func (v *Vectorizer) Vocabulary() *Vocabulary {
	return v.vocab
}

// Features returns the vocabulary size.
func (v *Vectorizer) Features() int {
	return v.vocab.Size()
}

// IDF returns a copy of the IDF weights in vocabulary order.
func (v *Vectorizer) IDF() []float64 {
	out := make([]float64, len(v.idf))
	copy(out, v.idf)
	return out
}

// Vectorize computes tf(t,d) * idf(t) for every known term of text and
// L2-normalises the result. Unknown terms are ignored. A document with no
// known terms yields an empty vector.
func (v *Vectorizer) Vectorize(text string) SparseVector {
	counts := make(map[int]int)
	for _, tok := range Tokenize(text) {
		if i, ok := v.vocab.Index(tok); ok {
			counts[i]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	indices := make([]int, 0, len(counts))
	for i := range counts {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var sumSquares float64
	for k, i := range indices {
		w := float64(counts[i]) * v.idf[i]
		values[k] = w
		sumSquares += w * w
	}

	if norm := math.Sqrt(sumSquares); norm > 0 {
		for k := range values {
			values[k] /= norm
		}
	}

	return SparseVector{Indices: indices, Values: values}
}
