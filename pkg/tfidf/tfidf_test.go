package tfidf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"Simple sentence", "Win a free car now!", []string{"win", "free", "car", "now"}},
		{"Punctuation splits", "URGENT: account-verification", []string{"urgent", "account", "verification"}},
		{"Digits and underscore", "call 0800 now_now x1", []string{"call", "0800", "now_now", "x1"}},
		{"Apostrophe", "let's catch up", []string{"let", "catch", "up"}},
		{"Unicode letters", "Grüße ΚΑΛΗ", []string{"grüße", "καλη"}},
		{"Empty text", "", nil},
		{"Only short tokens", "a b c !", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokenize(tt.text))
		})
	}
}

func TestVocabularyIsSortedAndContiguous(t *testing.T) {
	vocab := NewVocabulary([]string{"zeta", "alpha", "mid", "alpha"})

	require.Equal(t, 3, vocab.Size())
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, vocab.Terms())

	for i, term := range vocab.Terms() {
		idx, ok := vocab.Index(term)
		assert.True(t, ok)
		assert.Equal(t, i, idx)
	}
}

func TestVocabularyFromIndex(t *testing.T) {
	vocab, err := VocabularyFromIndex(map[string]int{"car": 0, "free": 1})
	require.NoError(t, err)
	assert.Equal(t, "free", vocab.Term(1))

	_, err = VocabularyFromIndex(map[string]int{"car": 0, "free": 2})
	assert.Error(t, err, "gap in indices must be rejected")

	_, err = VocabularyFromIndex(map[string]int{"car": 1, "free": 1})
	assert.Error(t, err, "duplicate index must be rejected")
}

func TestFitComputesSmoothedIDF(t *testing.T) {
	v, err := Fit([]string{"a free car", "free free money"})
	require.NoError(t, err)

	assert.Equal(t, []string{"car", "free", "money"}, v.Vocabulary().Terms())

	idf := v.IDF()
	assert.InDelta(t, math.Log(3.0/2.0)+1, idf[0], 1e-12)
	assert.InDelta(t, 1.0, idf[1], 1e-12, "a term in every document keeps idf 1")
	assert.InDelta(t, math.Log(3.0/2.0)+1, idf[2], 1e-12)
}

func TestFitErrors(t *testing.T) {
	_, err := Fit(nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)

	_, err = Fit([]string{"a", "! ?"})
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestVectorizeNormalises(t *testing.T) {
	v, err := Fit([]string{"a free car", "free free money"})
	require.NoError(t, err)

	vec := v.Vectorize("Free FREE money, unknown words!")
	require.Equal(t, []int{1, 2}, vec.Indices)

	moneyIDF := math.Log(1.5) + 1
	norm := math.Sqrt(4 + moneyIDF*moneyIDF)
	assert.InDelta(t, 2/norm, vec.Values[0], 1e-12)
	assert.InDelta(t, moneyIDF/norm, vec.Values[1], 1e-12)

	var sumSquares float64
	for _, w := range vec.Values {
		sumSquares += w * w
	}
	assert.InDelta(t, 1.0, sumSquares, 1e-12)
}

func TestVectorizeUnknownTextIsZero(t *testing.T) {
	v, err := Fit([]string{"meeting minutes attached"})
	require.NoError(t, err)

	for _, text := range []string{"", "nothing matches here", "!!!"} {
		vec := v.Vectorize(text)
		assert.Equal(t, 0, vec.Len(), "text %q", text)
		assert.Equal(t, 0.0, vec.Dot([]float64{1, 2, 3}))
	}
}

func TestNewVectorizerRejectsMismatchedIDF(t *testing.T) {
	vocab := NewVocabulary([]string{"car", "free"})
	_, err := NewVectorizer(vocab, []float64{1})
	assert.Error(t, err)

	v, err := NewVectorizer(vocab, []float64{1.5, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Features())
}
