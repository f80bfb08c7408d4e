package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	tok := Default()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"lowercases and splits punctuation", "Install-Guide: the PACKAGE!", []string{"install", "guide", "package"}},
		{"keeps duplicates in order", "foo bar foo", []string{"foo", "bar", "foo"}},
		{"digits count", "v2 404 http2", []string{"404", "http2"}},
		{"unicode letters", "Über straße", []string{"über", "straße"}},
		{"only stop words", "the and of", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Terms(tt.in))
		})
	}
}

func TestMinLengthBoundary(t *testing.T) {
	tok := New(Settings{MinLength: 4, StopWords: []string{}})
	assert.Equal(t, []string{"four"}, tok.Terms("four thr"))

	tok = Default()
	assert.Equal(t, []string{"abc"}, tok.Terms("abc ab"))
	assert.Equal(t, []string{"äöü"}, tok.Terms("äöü äö"), "length counts runes, not bytes")
}

func TestIdempotent(t *testing.T) {
	tok := Default()
	inputs := []string{
		"Install Guide — install the package",
		"İstanbul ΣΊΣΥΦΟΣ naïve café",
		"snake_case kebab-case CamelCase 3.14159",
		"  \t\n",
		"ǅemal ﬁle Ⅻ",
	}
	for _, in := range inputs {
		first := tok.Terms(in)
		second := tok.Terms(strings.Join(first, " "))
		assert.Equal(t, first, second, "input %q", in)
	}
}

func TestPositions(t *testing.T) {
	tokens := Default().Tokenize("the quick brown fox")
	assert.Equal(t, []Token{{"quick", 0}, {"brown", 1}, {"fox", 2}}, tokens)
}

func TestSettings(t *testing.T) {
	tok := New(Settings{StopWords: []string{" Beta", "alpha", "beta", ""}})
	s := tok.Settings()
	assert.Equal(t, DefaultMinLength, s.MinLength)
	assert.Equal(t, []string{"alpha", "beta"}, s.StopWords)
	assert.Equal(t, []string{"gamma"}, tok.Terms("Alpha BETA gamma"))

	replay := New(s)
	assert.Equal(t, tok.Terms("alpha the gamma"), replay.Terms("alpha the gamma"))

	s.StopWords[0] = "mutated"
	assert.Equal(t, "alpha", tok.Settings().StopWords[0])
}

func TestStopWordsDisabled(t *testing.T) {
	tok := New(Settings{StopWords: []string{}})
	assert.Equal(t, []string{"the", "and"}, tok.Terms("the and"))
}

func TestNormalize(t *testing.T) {
	tok := Default()
	term, ok := tok.Normalize("Install")
	assert.True(t, ok)
	assert.Equal(t, "install", term)

	_, ok = tok.Normalize("ab")
	assert.False(t, ok)
	_, ok = tok.Normalize("the")
	assert.False(t, ok)
	_, ok = tok.Normalize("two words")
	assert.False(t, ok)
}
