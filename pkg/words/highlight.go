package words

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/zpam/spamscan/pkg/tfidf"
)

// Default markup wrapped around each highlighted occurrence.
const (
	DefaultOpenTag  = "<mark>"
	DefaultCloseTag = "</mark>"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Match is the outcome of highlighting one text.
type Match struct {
	Found []string
	Count int
	Text  string
}

type phrase struct {
	tokens []string
	word   string
}

// Highlighter marks whole-word, case-insensitive occurrences of table words.
//
// Text is split once into word tokens. At each token the longest table entry
// starting there wins and scanning resumes after it, so marks never overlap
// and the result does not depend on table order.
type Highlighter struct {
	index    map[string][]phrase
	matcher  *ahocorasick.Matcher
	open     string
	close    string
	maxWords int
}

// Option configures a Highlighter.
type Option func(*Highlighter)

// WithTags sets the markup placed around each occurrence.
func WithTags(openTag, closeTag string) Option {
	return func(h *Highlighter) {
		h.open = openTag
		h.close = closeTag
	}
}

// WithMaxWords limits the highlighter to the n highest scoring words.
func WithMaxWords(n int) Option {
	return func(h *Highlighter) {
		h.maxWords = n
	}
}

// NewHighlighter builds a highlighter over the positive-score entries of
// table.
func NewHighlighter(table Table, opts ...Option) *Highlighter {
	h := &Highlighter{
		index: make(map[string][]phrase),
		open:  DefaultOpenTag,
		close: DefaultCloseTag,
	}
	for _, opt := range opts {
		opt(h)
	}

	var firsts []string
	for _, e := range table.Suspicious().Top(h.maxWords) {
		tokens := wordPattern.FindAllString(tfidf.Lower(e.Word), -1)
		if len(tokens) == 0 {
			continue
		}
		if _, ok := h.index[tokens[0]]; !ok {
			firsts = append(firsts, tokens[0])
		}
		h.index[tokens[0]] = append(h.index[tokens[0]], phrase{
			tokens: tokens,
			word:   strings.Join(tokens, " "),
		})
	}

	for first, phrases := range h.index {
		sort.SliceStable(phrases, func(a, b int) bool {
			if len(phrases[a].tokens) != len(phrases[b].tokens) {
				return len(phrases[a].tokens) > len(phrases[b].tokens)
			}
			return phrases[a].word < phrases[b].word
		})
		h.index[first] = dedupe(phrases)
	}

	if len(firsts) > 0 {
		h.matcher = ahocorasick.NewStringMatcher(firsts)
	}
	return h
}

func dedupe(phrases []phrase) []phrase {
	out := phrases[:0]
	for i, p := range phrases {
		if i > 0 && p.word == phrases[i-1].word {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Words returns the number of distinct entries the highlighter looks for.
func (h *Highlighter) Words() int {
	n := 0
	for _, phrases := range h.index {
		n += len(phrases)
	}
	return n
}

// Highlight finds table words in text and wraps every occurrence, keeping
// the original casing of the matched text. Found words are listed once, in
// order of first appearance. When nothing matches, Text equals the input.
func (h *Highlighter) Highlight(text string) Match {
	result := Match{Found: []string{}, Text: text}
	if h.matcher == nil || text == "" {
		return result
	}

	// Cheap rejection: no table word's first token occurs anywhere.
	if len(h.matcher.MatchThreadSafe([]byte(tfidf.Lower(text)))) == 0 {
		return result
	}

	spans := wordPattern.FindAllStringIndex(text, -1)
	tokens := make([]string, len(spans))
	for i, s := range spans {
		tokens[i] = tfidf.Lower(text[s[0]:s[1]])
	}

	var marks [][2]int
	seen := make(map[string]struct{})
	for i := 0; i < len(tokens); {
		p, ok := h.longestAt(tokens, i)
		if !ok {
			i++
			continue
		}
		end := i + len(p.tokens) - 1
		marks = append(marks, [2]int{spans[i][0], spans[end][1]})
		if _, dup := seen[p.word]; !dup {
			seen[p.word] = struct{}{}
			result.Found = append(result.Found, p.word)
		}
		i = end + 1
	}

	if len(marks) == 0 {
		return result
	}

	var b strings.Builder
	b.Grow(len(text) + len(marks)*(len(h.open)+len(h.close)))
	last := 0
	for _, m := range marks {
		b.WriteString(text[last:m[0]])
		b.WriteString(h.open)
		b.WriteString(text[m[0]:m[1]])
		b.WriteString(h.close)
		last = m[1]
	}
	b.WriteString(text[last:])

	result.Count = len(result.Found)
	result.Text = b.String()
	return result
}

func (h *Highlighter) longestAt(tokens []string, i int) (phrase, bool) {
	for _, p := range h.index[tokens[i]] {
		if i+len(p.tokens) > len(tokens) {
			continue
		}
		match := true
		for k, tok := range p.tokens[1:] {
			if tokens[i+k+1] != tok {
				match = false
				break
			}
		}
		if match {
			return p, true
		}
	}
	return phrase{}, false
}
