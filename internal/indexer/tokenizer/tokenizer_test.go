package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDefaults(t *testing.T) {
	tok := Default()
	assert.Equal(t,
		[]string{"python", "great", "async", "io"},
		tok.Terms("Python is GREAT: async-io, a b"),
	)
}

func TestTokenizePositionsSkipDroppedWords(t *testing.T) {
	tokens := Default().Tokenize("the graph of knowledge")
	assert.Equal(t, []Token{{Term: "graph", Position: 0}, {Term: "knowledge", Position: 1}}, tokens)
}

func TestTokenizeOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		text string
		want []string
	}{
		{"min length 4", Options{MinTokenLength: 4}, "go rust java", []string{"rust", "java"}},
		{"custom stop words", Options{StopWords: []string{"Rust"}}, "go rust java", []string{"go", "java"}},
		{"stop words disabled", Options{StopWords: []string{}}, "the end", []string{"the", "end"}},
		{"digits kept", Options{}, "v2 release 2024", []string{"v2", "release", "2024"}},
		{"stemming", Options{Stem: true}, "running patterns", []string{"run", "pattern"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, New(tc.opts).Terms(tc.text))
		})
	}
}

func TestFrequencies(t *testing.T) {
	freqs, n := Default().Frequencies("python python python rocks")
	assert.Equal(t, 4, n)
	assert.Equal(t, map[string]int{"python": 3, "rocks": 1}, freqs)
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Default().Tokenize("   ... the a !!"))
}
