// Package embeddings vectorizes content text for similarity comparisons.
package embeddings

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"
)

// DefaultMaxFeatures caps the vocabulary size.
const DefaultMaxFeatures = 1000

// ErrEmptyVocabulary is returned when no document contains a usable term,
// for example because every token is a stopword.
var ErrEmptyVocabulary = errors.New("empty vocabulary; documents contain only stop words")

// Vectorizer builds TF-IDF vectors over a corpus. It holds no fitted
// state: every FitTransform call builds a vocabulary from its own input.
type Vectorizer struct {
	maxFeatures int
	stopWords   map[string]struct{}
}

// VectorizerOption configures a Vectorizer.
type VectorizerOption func(*Vectorizer)

// WithMaxFeatures caps the vocabulary at the n most frequent terms.
func WithMaxFeatures(n int) VectorizerOption {
	return func(v *Vectorizer) {
		if n > 0 {
			v.maxFeatures = n
		}
	}
}

// WithStopWords replaces the stopword list. A nil list disables filtering.
func WithStopWords(words []string) VectorizerOption {
	return func(v *Vectorizer) {
		v.stopWords = make(map[string]struct{}, len(words))
		for _, w := range words {
			v.stopWords[w] = struct{}{}
		}
	}
}

// NewVectorizer creates a vectorizer with the English stopword list and a
// vocabulary of DefaultMaxFeatures terms.
func NewVectorizer(opts ...VectorizerOption) *Vectorizer {
	v := &Vectorizer{
		maxFeatures: DefaultMaxFeatures,
		stopWords:   englishStopWords,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// TermMatrix is a fitted document-term matrix. Terms are sorted
// alphabetically and Rows[i][j] is the weight of Terms[j] in document i.
// Every non-zero row has unit L2 norm.
type TermMatrix struct {
	Terms []string
	Rows  [][]float64
}

// FitTransform fits a vocabulary and IDF weights to docs and returns
// their vectors. Term frequency is the raw count and
// idf = ln((1+n)/(1+df)) + 1.
func (v *Vectorizer) FitTransform(docs []string) (*TermMatrix, error) {
	tokenized := make([][]string, len(docs))
	corpusFreq := make(map[string]int)
	for i, doc := range docs {
		tokenized[i] = v.tokens(doc)
		for _, term := range tokenized[i] {
			corpusFreq[term]++
		}
	}
	if len(corpusFreq) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := v.selectTerms(corpusFreq)
	index := make(map[string]int, len(terms))
	for i, term := range terms {
		index[term] = i
	}

	docFreq := make([]int, len(terms))
	counts := make([]map[int]int, len(docs))
	for i, toks := range tokenized {
		counts[i] = make(map[int]int)
		for _, term := range toks {
			if j, ok := index[term]; ok {
				counts[i][j]++
			}
		}
		for j := range counts[i] {
			docFreq[j]++
		}
	}

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for j, df := range docFreq {
		idf[j] = math.Log((1+n)/(1+float64(df))) + 1
	}

	rows := make([][]float64, len(docs))
	for i := range docs {
		row := make([]float64, len(terms))
		for j, c := range counts[i] {
			row[j] = float64(c) * idf[j]
		}
		normalize(row)
		rows[i] = row
	}

	return &TermMatrix{Terms: terms, Rows: rows}, nil
}

// selectTerms keeps the maxFeatures most frequent terms, breaking ties
// alphabetically, and returns them sorted alphabetically.
func (v *Vectorizer) selectTerms(freq map[string]int) []string {
	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > v.maxFeatures {
		terms = terms[:v.maxFeatures]
	}
	sort.Strings(terms)
	return terms
}

// tokens lowercases text and returns its runs of two or more word
// characters, minus stopwords.
func (v *Vectorizer) tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := v.stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// TopTerms returns up to k terms of row with the highest positive weight,
// heaviest first. Ties are broken alphabetically.
func (m *TermMatrix) TopTerms(row, k int) []string {
	if row < 0 || row >= len(m.Rows) {
		return nil
	}
	weights := m.Rows[row]

	idx := make([]int, 0, len(weights))
	for j, w := range weights {
		if w > 0 {
			idx = append(idx, j)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		if weights[idx[a]] != weights[idx[b]] {
			return weights[idx[a]] > weights[idx[b]]
		}
		return m.Terms[idx[a]] < m.Terms[idx[b]]
	})
	if len(idx) > k {
		idx = idx[:k]
	}

	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = m.Terms[j]
	}
	return out
}

// Similarity returns the full pairwise cosine-similarity matrix.
func (m *TermMatrix) Similarity() [][]float64 {
	n := len(m.Rows)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s := Cosine(m.Rows[i], m.Rows[j])
			sim[i][j] = s
			sim[j][i] = s
		}
	}
	return sim
}

// Cosine returns the cosine similarity of two equal-length vectors, or 0
// when either has zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// normalize scales vec to unit L2 norm in place.
func normalize(vec []float64) {
	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
