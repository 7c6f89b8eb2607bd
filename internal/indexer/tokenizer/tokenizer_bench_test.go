package tokenizer

import (
	"strings"
	"testing"
)

const benchText = "Reciprocal rank fusion combines the rankings of several retrievers, rewarding documents that appear near the top of many lists."

func BenchmarkTokenize(b *testing.B) {
	tok := Default()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = tok.Tokenize(benchText)
	}
}

func BenchmarkTokenizeStemmed(b *testing.B) {
	tok := New(Options{Stem: true})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = tok.Tokenize(benchText)
	}
}

// BenchmarkFrequenciesLarge measures term counting on a long body.
func BenchmarkFrequenciesLarge(b *testing.B) {
	tok := Default()
	text := strings.Repeat(benchText+" ", 100)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tok.Frequencies(text)
	}
}
