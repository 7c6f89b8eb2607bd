// Package tokenizer provides text tokenisation for the exact-match index.
// It lower-cases input, splits into alphanumeric runs, drops short tokens
// and stop-words, and can optionally apply a Snowball English stemmer.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
)

// DefaultMinTokenLength drops single-character tokens.
const DefaultMinTokenLength = 2

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// DefaultStopWords returns a copy of the built-in English stop-word list.
func DefaultStopWords() []string {
	out := make([]string, len(defaultStopWords))
	copy(out, defaultStopWords)
	return out
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Options configures a Tokenizer. A nil StopWords slice selects the default
// list; an empty non-nil slice disables stop-word removal.
type Options struct {
	MinTokenLength int
	StopWords      []string
	Stem           bool
}

// Tokenizer is immutable after construction and safe for concurrent use.
type Tokenizer struct {
	minLen int
	stop   map[string]struct{}
	stem   bool
}

// New builds a Tokenizer from opts, filling defaults for zero values.
func New(opts Options) *Tokenizer {
	minLen := opts.MinTokenLength
	if minLen <= 0 {
		minLen = DefaultMinTokenLength
	}
	words := opts.StopWords
	if words == nil {
		words = defaultStopWords
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Tokenizer{minLen: minLen, stop: stop, stem: opts.Stem}
}

// Default returns a Tokenizer with the default options.
func Default() *Tokenizer {
	return New(Options{})
}

// Tokenize breaks text into lowercased Tokens with short tokens and
// stop-words removed. Positions count surviving tokens only.
func (t *Tokenizer) Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if utf8.RuneCountInString(word) < t.minLen {
			continue
		}
		if _, isStop := t.stop[word]; isStop {
			continue
		}
		if t.stem {
			word = english.Stem(word, false)
			if word == "" {
				continue
			}
		}
		tokens = append(tokens, Token{Term: word, Position: pos})
		pos++
	}
	return tokens
}

// Terms returns only the term strings of Tokenize(text).
func (t *Tokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// Frequencies returns the term-frequency map of text and its token count.
func (t *Tokenizer) Frequencies(text string) (map[string]int, int) {
	tokens := t.Tokenize(text)
	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok.Term]++
	}
	return freqs, len(tokens)
}
