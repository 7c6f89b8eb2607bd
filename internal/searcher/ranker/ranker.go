// Package ranker holds the Okapi BM25 scoring primitives used by the
// exact-match index.
package ranker

import "math"

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Params are the BM25 free parameters. K1 controls term-frequency
// saturation, B controls length normalisation.
type Params struct {
	K1 float64 `yaml:"k1" json:"k1" validate:"gte=0"`
	B  float64 `yaml:"b" json:"b" validate:"gte=0,lte=1"`
}

// DefaultParams returns k1=1.2, b=0.75.
func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// IDF is the smoothed inverse document frequency
// ln((N - df + 0.5)/(df + 0.5) + 1). It is always positive for df <= N.
func IDF(totalDocs, docFreq int) float64 {
	n := float64(totalDocs)
	df := float64(docFreq)
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

// TFNorm is the saturated, length-normalised term frequency component.
func TFNorm(termFreq, docLength int, avgDocLength float64, p Params) float64 {
	if termFreq <= 0 || avgDocLength == 0 {
		return 0
	}
	tf := float64(termFreq)
	lengthRatio := float64(docLength) / avgDocLength
	denominator := tf + p.K1*(1-p.B+p.B*lengthRatio)
	return (tf * (p.K1 + 1)) / denominator
}

// TermScore is one query term's BM25 contribution to one document.
func TermScore(idf float64, termFreq, docLength int, avgDocLength float64, p Params) float64 {
	return idf * TFNorm(termFreq, docLength, avgDocLength, p)
}
