// Package index implements the in-memory BM25 exact-match index.
//
// Index is not safe for concurrent use; it expects a single writer and no
// concurrent readers during writes. Guarded wraps it with a read-write lock
// for services that need shared access.
package index

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

// Config controls tokenisation and BM25 parameters.
type Config struct {
	Params         ranker.Params
	MinTokenLength int
	// StopWords nil means the tokenizer's default list.
	StopWords []string
	Stem      bool
}

// DefaultConfig returns k1=1.2, b=0.75, min token length 2 and the default
// stop-word list.
func DefaultConfig() Config {
	return Config{
		Params:         ranker.DefaultParams(),
		MinTokenLength: tokenizer.DefaultMinTokenLength,
	}
}

// Index maps terms to per-item postings and keeps the document frequency
// and average length BM25 needs.
type Index struct {
	params      ranker.Params
	tok         *tokenizer.Tokenizer
	postings    map[string]*Posting
	docFreq     map[string]int
	totalLength int
	avgLength   float64
	seq         uint64
}

// New returns an empty index tokenising with cfg.
func New(cfg Config) *Index {
	return &Index{
		params: cfg.Params,
		tok: tokenizer.New(tokenizer.Options{
			MinTokenLength: cfg.MinTokenLength,
			StopWords:      cfg.StopWords,
			Stem:           cfg.Stem,
		}),
		postings: make(map[string]*Posting),
		docFreq:  make(map[string]int),
	}
}

// Add indexes it, replacing any earlier posting for the same ID. A replaced
// item keeps its original insertion order.
func (x *Index) Add(it item.Item) (string, error) {
	if it == nil {
		return "", fmt.Errorf("index add: %w", apperrors.ErrMissingIdentifier)
	}
	id := it.ID()
	if id == "" {
		return "", fmt.Errorf("index add: %w", apperrors.ErrMissingIdentifier)
	}
	terms, length := x.tok.Frequencies(item.AllText(it))

	if old, exists := x.postings[id]; exists {
		removed, added := diff(old.Terms, terms)
		for _, term := range removed {
			x.decrementDocFreq(term)
		}
		for _, term := range added {
			x.docFreq[term]++
		}
		x.totalLength += length - old.Length
		old.Item = it
		old.Terms = terms
		old.Length = length
		x.recomputeAverage()
		return id, nil
	}

	for term := range terms {
		x.docFreq[term]++
	}
	x.seq++
	x.postings[id] = &Posting{Item: it, Terms: terms, Length: length, Seq: x.seq}
	x.totalLength += length
	x.recomputeAverage()
	return id, nil
}

// Remove deletes the posting for id. It reports false, changing nothing,
// when id was never indexed.
func (x *Index) Remove(id string) bool {
	p, exists := x.postings[id]
	if !exists {
		return false
	}
	for term := range p.Terms {
		x.decrementDocFreq(term)
	}
	delete(x.postings, id)
	x.totalLength -= p.Length
	x.recomputeAverage()
	return true
}

// Search scores every indexed item against query with BM25 and returns
// those scoring strictly above minScore, best first. Equal scores keep
// insertion order. limit <= 0 returns every match. A query with no usable
// tokens yields an empty, non-nil slice.
func (x *Index) Search(query string, limit int, minScore float64) []item.Ranked[item.Item] {
	results := make([]item.Ranked[item.Item], 0)
	queryTerms := x.uniqueTerms(query)
	if len(queryTerms) == 0 || len(x.postings) == 0 {
		return results
	}

	// Weights stay in query order so every posting sums its terms in the
	// same sequence and equal postings score bit-identically.
	type weighted struct {
		term string
		idf  float64
	}
	n := len(x.postings)
	weights := make([]weighted, 0, len(queryTerms))
	for _, term := range queryTerms {
		if df := x.docFreq[term]; df > 0 {
			weights = append(weights, weighted{term: term, idf: ranker.IDF(n, df)})
		}
	}
	if len(weights) == 0 {
		return results
	}

	type scored struct {
		posting *Posting
		score   float64
	}
	matches := make([]scored, 0)
	for _, p := range x.postings {
		var score float64
		for _, w := range weights {
			if tf := p.Terms[w.term]; tf > 0 {
				score += ranker.TermScore(w.idf, tf, p.Length, x.avgLength, x.params)
			}
		}
		if score > minScore {
			matches = append(matches, scored{posting: p, score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].posting.Seq < matches[j].posting.Seq
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	for _, m := range matches {
		results = append(results, item.Ranked[item.Item]{Item: m.posting.Item, Score: m.score})
	}
	return results
}

// Clear drops every posting and resets all counters.
func (x *Index) Clear() {
	x.postings = make(map[string]*Posting)
	x.docFreq = make(map[string]int)
	x.totalLength = 0
	x.avgLength = 0
	x.seq = 0
}

// DocFreq is the number of indexed items whose posting contains term.
// term is normalised with the index's tokenizer first.
func (x *Index) DocFreq(term string) int {
	terms := x.tok.Terms(term)
	if len(terms) == 0 {
		return 0
	}
	return x.docFreq[terms[0]]
}

// IDF is the smoothed inverse document frequency of term against the
// current document count. Rarer terms, including unseen ones, weigh more.
func (x *Index) IDF(term string) float64 {
	return ranker.IDF(len(x.postings), x.DocFreq(term))
}

// DocCount is the number of indexed items.
func (x *Index) DocCount() int { return len(x.postings) }

// AvgLength is the mean token length of indexed items.
func (x *Index) AvgLength() float64 { return x.avgLength }

// Contains reports whether id has a posting.
func (x *Index) Contains(id string) bool {
	_, ok := x.postings[id]
	return ok
}

// Stats returns document, term and average-length counters.
func (x *Index) Stats() Stats {
	return Stats{
		Documents: len(x.postings),
		Terms:     len(x.docFreq),
		AvgLength: x.avgLength,
	}
}

func (x *Index) uniqueTerms(query string) []string {
	tokens := x.tok.Tokenize(query)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t.Term]; ok {
			continue
		}
		seen[t.Term] = struct{}{}
		terms = append(terms, t.Term)
	}
	return terms
}

func (x *Index) decrementDocFreq(term string) {
	if x.docFreq[term] <= 1 {
		delete(x.docFreq, term)
		return
	}
	x.docFreq[term]--
}

func (x *Index) recomputeAverage() {
	if len(x.postings) == 0 {
		x.avgLength = 0
		return
	}
	x.avgLength = float64(x.totalLength) / float64(len(x.postings))
}
