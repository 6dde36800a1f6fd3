package tfidf

import (
	"fmt"
	"sort"
)

// Vocabulary maps each term to a contiguous index in [0, Size()).
type Vocabulary struct {
	index map[string]int
	terms []string
}

// NewVocabulary builds a vocabulary from a set of terms. Terms are sorted
// lexicographically so the same corpus always yields the same indices.
func NewVocabulary(terms []string) *Vocabulary {
	sorted := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	v := &Vocabulary{
		index: make(map[string]int, len(sorted)),
		terms: sorted,
	}
	for i, t := range sorted {
		v.index[t] = i
	}
	return v
}

// VocabularyFromIndex rebuilds a vocabulary from a stored term → index
// mapping. The indices must cover [0, len(index)) exactly once.
func VocabularyFromIndex(index map[string]int) (*Vocabulary, error) {
	terms := make([]string, len(index))
	for term, i := range index {
		if i < 0 || i >= len(index) {
			return nil, fmt.Errorf("term %q has index %d outside [0, %d)", term, i, len(index))
		}
		if terms[i] != "" {
			return nil, fmt.Errorf("index %d assigned to both %q and %q", i, terms[i], term)
		}
		if term == "" {
			return nil, fmt.Errorf("empty term at index %d", i)
		}
		terms[i] = term
	}

	v := &Vocabulary{
		index: make(map[string]int, len(index)),
		terms: terms,
	}
	for term, i := range index {
		v.index[term] = i
	}
	return v, nil
}

// Size returns the number of terms.
func (v *Vocabulary) Size() int {
	return len(v.terms)
}

// Index returns the index of a term and whether it is known.
func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// Term returns the term stored at index i.
func (v *Vocabulary) Term(i int) string {
	return v.terms[i]
}

// Terms returns a copy of all terms in index order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Map returns a copy of the term → index mapping.
func (v *Vocabulary) Map() map[string]int {
	out := make(map[string]int, len(v.index))
	for t, i := range v.index {
		out[t] = i
	}
	return out
}
