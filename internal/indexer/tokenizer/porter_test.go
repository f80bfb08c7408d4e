package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPorterStem(t *testing.T) {
	tests := map[string]string{
		"caresses":        "caress",
		"ponies":          "poni",
		"caress":          "caress",
		"cats":            "cat",
		"feed":            "feed",
		"agreed":          "agre",
		"plastered":       "plaster",
		"bled":            "bled",
		"motoring":        "motor",
		"sing":            "sing",
		"conflated":       "conflat",
		"troubled":        "troubl",
		"sized":           "size",
		"hopping":         "hop",
		"falling":         "fall",
		"hissing":         "hiss",
		"failing":         "fail",
		"filing":          "file",
		"happy":           "happi",
		"sky":             "sky",
		"relational":      "relat",
		"generalizations": "gener",
		"oscillators":     "oscil",
		"install":         "instal",
		"installing":      "instal",
		"package":         "packag",
		"modules":         "modul",
		"organization":    "organ",
		"guide":           "guid",
		"welcome":         "welcom",
		"news":            "new",
		"go":              "go",
	}
	for word, want := range tests {
		assert.Equal(t, want, porterStem(word), word)
	}
}

func TestSphinxTerms(t *testing.T) {
	tok := Sphinx()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"stems and drops stop words", "Installing the Packages", []string{"instal", "packag"}},
		{"underscore joins words", "get_value", []string{"get_valu"}},
		{"numbers are dropped", "release 2024", []string{"releas"}},
		{"short stem keeps the word", "ties", []string{"ties"}},
		{"short words are dropped", "go to it", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Terms(tt.in))
		})
	}

	term, ok := tok.Normalize("Modules")
	assert.True(t, ok)
	assert.Equal(t, "modul", term)
	assert.Equal(t, StemmerPorter, tok.Settings().Stemmer)
}

func TestDefaultDoesNotStem(t *testing.T) {
	assert.Equal(t, []string{"installing", "packages"}, Default().Terms("installing packages"))
	assert.Empty(t, Default().Settings().Stemmer)
}
