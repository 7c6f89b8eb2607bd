package rerank

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/indexer/tokenizer"
)

// LexicalPredictor scores a pair by the cosine similarity of the query's
// and the document's term-frequency vectors. It needs no model files and
// serves as the default local predictor.
type LexicalPredictor struct {
	tok *tokenizer.Tokenizer
}

// NewLexicalPredictor ignores model and useGPU.
func NewLexicalPredictor(_ string, _ bool) (Predictor, error) {
	return &LexicalPredictor{tok: tokenizer.New(tokenizer.Options{Stem: true})}, nil
}

func (p *LexicalPredictor) Predict(pairs []Pair) ([]float64, error) {
	scores := make([]float64, len(pairs))
	queryVecs := make(map[string]map[string]int)
	for i, pair := range pairs {
		q, ok := queryVecs[pair.Query]
		if !ok {
			q, _ = p.tok.Frequencies(pair.Query)
			queryVecs[pair.Query] = q
		}
		d, _ := p.tok.Frequencies(pair.Document)
		scores[i] = cosine(q, d)
	}
	return scores, nil
}

func (p *LexicalPredictor) Close() error { return nil }

func cosine(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for term, fa := range a {
		na += float64(fa * fa)
		if fb, ok := b[term]; ok {
			dot += float64(fa * fb)
		}
	}
	for _, fb := range b {
		nb += float64(fb * fb)
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
