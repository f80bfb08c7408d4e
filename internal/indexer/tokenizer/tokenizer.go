// Package tokenizer provides text tokenisation shared by the index builder
// and the query engine. It lower-cases input, splits on non-alphanumeric
// boundaries, and drops short terms and stop-words. The builder never stems;
// the Porter stemmer exists only to query indexes produced by Sphinx.
package tokenizer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinLength is the shortest term kept when Settings.MinLength is zero.
const DefaultMinLength = 3

// DefaultStopWords is the English stop-word list used when Settings.StopWords
// is nil.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "but", "by", "can", "do", "each", "for", "from",
	"had", "has", "have", "he", "if", "in", "is", "it", "its",
	"no", "not", "of", "on", "or", "so", "such",
	"that", "the", "their", "then", "there", "these", "they", "this", "to",
	"was", "were", "what", "when", "where", "which", "who", "will", "with",
}

// StemmerPorter selects Sphinx's English term pipeline: underscores join
// words, purely numeric words are dropped and the remaining words are reduced
// with the Porter stemmer.
const StemmerPorter = "porter"

// SphinxStopWords is the stop-word list of Sphinx's English search language.
var SphinxStopWords = []string{
	"a", "and", "are", "as", "at", "be", "but", "by", "for", "if", "in",
	"into", "is", "it", "near", "no", "not", "of", "on", "or", "such",
	"that", "the", "their", "then", "there", "these", "they", "this", "to",
	"was", "will", "with",
}

// Settings configures a Tokenizer.
type Settings struct {
	// MinLength is the minimum term length in runes. Zero means
	// DefaultMinLength.
	MinLength int
	// StopWords are removed after normalization. Nil means DefaultStopWords;
	// an empty non-nil slice disables stop-word removal.
	StopWords []string
	// Stemmer is empty for none or StemmerPorter.
	Stemmer string
}

// Token represents a single normalised term and its position among the kept
// terms of the original text.
type Token struct {
	Term     string
	Position int
}

// Tokenizer is immutable and safe for concurrent use.
type Tokenizer struct {
	minLength int
	stopWords map[string]struct{}
	stem      bool
	settings  Settings
}

// New builds a Tokenizer. Stop words are normalized the same way as text so
// that a configured "The" matches the term "the".
func New(s Settings) *Tokenizer {
	if s.MinLength <= 0 {
		s.MinLength = DefaultMinLength
	}
	words := s.StopWords
	if words == nil {
		words = DefaultStopWords
	}
	t := &Tokenizer{
		minLength: s.MinLength,
		stopWords: make(map[string]struct{}, len(words)),
		stem:      s.Stemmer == StemmerPorter,
	}
	normalized := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := t.stopWords[w]; dup {
			continue
		}
		t.stopWords[w] = struct{}{}
		normalized = append(normalized, w)
	}
	sort.Strings(normalized)
	t.settings = Settings{MinLength: s.MinLength, StopWords: normalized, Stemmer: s.Stemmer}
	return t
}

// Default returns a Tokenizer with default settings.
func Default() *Tokenizer {
	return New(Settings{})
}

// Sphinx returns a Tokenizer that reproduces the terms of an English index
// written by Sphinx. Its output is not idempotent: stems are stemmed again.
func Sphinx() *Tokenizer {
	return New(Settings{MinLength: 3, StopWords: SphinxStopWords, Stemmer: StemmerPorter})
}

// Settings returns the effective configuration with defaults applied and the
// stop-word list normalized and sorted.
func (t *Tokenizer) Settings() Settings {
	out := t.settings
	out.StopWords = append([]string{}, t.settings.StopWords...)
	return out
}

// Tokenize breaks text into lowercased Tokens in input order.
func (t *Tokenizer) Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), t.separator)
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		term, ok := t.term(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: len(tokens),
		})
	}
	return tokens
}

// Terms returns the normalized terms of text in input order, duplicates
// included.
func (t *Tokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// Normalize reports whether word survives tokenization on its own and, if so,
// its normalized form. Words containing separators are rejected.
func (t *Tokenizer) Normalize(word string) (string, bool) {
	word = strings.ToLower(word)
	if word == "" || strings.IndexFunc(word, t.separator) >= 0 {
		return "", false
	}
	return t.term(word)
}

// term filters a lowercased word and stems it when configured. A stem that
// would itself be filtered, such as "ti" from "ties", falls back to the word.
func (t *Tokenizer) term(word string) (string, bool) {
	if !t.keep(word) {
		return "", false
	}
	if !t.stem {
		return word, true
	}
	if isNumeric(word) {
		return "", false
	}
	stem := porterStem(word)
	if !t.keep(stem) {
		return word, true
	}
	return stem, true
}

func (t *Tokenizer) keep(word string) bool {
	if utf8.RuneCountInString(word) < t.minLength {
		return false
	}
	_, isStop := t.stopWords[word]
	return !isStop
}

func (t *Tokenizer) separator(r rune) bool {
	if t.stem && r == '_' {
		return false
	}
	return isSeparator(r)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isNumeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
