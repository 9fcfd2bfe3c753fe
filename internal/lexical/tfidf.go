// Package lexical implements the in-memory TF-IDF index used when no
// embedding backend is available.
package lexical

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/bull/rag-qa-server/internal/storage"
)

// DefaultMaxFeatures caps the vocabulary size.
const DefaultMaxFeatures = 5000

// term weight in a sparse, L2-normalised document vector.
type weight struct {
	term  int
	value float64
}

// Index is a TF-IDF vector space over unigrams and bigrams. Fit replaces
// the whole index; queries score every fitted document by cosine
// similarity. Index is safe for concurrent use.
type Index struct {
	maxFeatures int

	mu    sync.RWMutex
	vocab map[string]int
	idf   []float64
	docs  [][]weight
	texts []string
	metas []storage.ChunkMetadata
}

// New creates an empty index. maxFeatures <= 0 uses DefaultMaxFeatures.
func New(maxFeatures int) *Index {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	return &Index{maxFeatures: maxFeatures}
}

// Fit builds the vector space from texts. metas must be nil or the same
// length as texts.
func (x *Index) Fit(texts []string, metas []storage.ChunkMetadata) error {
	if metas != nil && len(metas) != len(texts) {
		return fmt.Errorf("fit: %d texts but %d metadata records", len(texts), len(metas))
	}
	if metas == nil {
		metas = make([]storage.ChunkMetadata, len(texts))
	}

	docTerms := make([][]string, len(texts))
	corpusFreq := make(map[string]int)
	for i, text := range texts {
		docTerms[i] = terms(text)
		for _, t := range docTerms[i] {
			corpusFreq[t]++
		}
	}

	vocab := buildVocabulary(corpusFreq, x.maxFeatures)

	docFreq := make([]int, len(vocab))
	counts := make([]map[int]int, len(texts))
	for i, ts := range docTerms {
		counts[i] = make(map[int]int)
		for _, t := range ts {
			if id, ok := vocab[t]; ok {
				counts[i][id]++
			}
		}
		for id := range counts[i] {
			docFreq[id]++
		}
	}

	n := float64(len(texts))
	idf := make([]float64, len(vocab))
	for id, df := range docFreq {
		idf[id] = math.Log((1+n)/(1+float64(df))) + 1
	}

	docs := make([][]weight, len(texts))
	for i, c := range counts {
		docs[i] = vectorize(c, idf)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.vocab = vocab
	x.idf = idf
	x.docs = docs
	x.texts = append([]string(nil), texts...)
	x.metas = append([]storage.ChunkMetadata(nil), metas...)
	return nil
}

// Query returns up to k documents with a positive cosine similarity to
// text, highest first. A query sharing no term with the vocabulary returns
// an empty slice.
func (x *Index) Query(text string, k int) []storage.SearchResult {
	x.mu.RLock()
	defer x.mu.RUnlock()

	results := []storage.SearchResult{}
	if k <= 0 || len(x.docs) == 0 {
		return results
	}

	counts := make(map[int]int)
	for _, t := range terms(text) {
		if id, ok := x.vocab[t]; ok {
			counts[id]++
		}
	}
	query := vectorize(counts, x.idf)
	if len(query) == 0 {
		return results
	}

	dense := make(map[int]float64, len(query))
	for _, w := range query {
		dense[w.term] = w.value
	}

	for i, doc := range x.docs {
		var score float64
		for _, w := range doc {
			score += w.value * dense[w.term]
		}
		if score <= 0 {
			continue
		}
		results = append(results, storage.SearchResult{
			Content:  x.texts[i],
			Score:    math.Min(score, 1),
			Metadata: x.metas[i],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Len returns the number of fitted documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// buildVocabulary keeps the maxFeatures most frequent terms. Ties are
// broken alphabetically so the result is deterministic.
func buildVocabulary(freq map[string]int, maxFeatures int) map[string]int {
	all := make([]string, 0, len(freq))
	for t := range freq {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if freq[all[i]] != freq[all[j]] {
			return freq[all[i]] > freq[all[j]]
		}
		return all[i] < all[j]
	})
	if len(all) > maxFeatures {
		all = all[:maxFeatures]
	}

	vocab := make(map[string]int, len(all))
	for i, t := range all {
		vocab[t] = i
	}
	return vocab
}

// vectorize weights raw term counts by idf and L2-normalises the result.
func vectorize(counts map[int]int, idf []float64) []weight {
	vec := make([]weight, 0, len(counts))
	var norm float64
	for id, c := range counts {
		v := float64(c) * idf[id]
		vec = append(vec, weight{term: id, value: v})
		norm += v * v
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i].value /= norm
	}
	return vec
}

// terms returns the unigrams of text followed by its bigrams.
func terms(text string) []string {
	tokens := tokenize(text)
	out := make([]string, 0, 2*len(tokens))
	out = append(out, tokens...)
	for i := 1; i < len(tokens); i++ {
		out = append(out, tokens[i-1]+" "+tokens[i])
	}
	return out
}

// tokenize lower-cases text and splits it into tokens. Every CJK ideograph
// is a token of its own; runs of other letters and digits form one token.
func tokenize(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}
