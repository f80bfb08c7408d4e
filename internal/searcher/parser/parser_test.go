package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

func TestParse(t *testing.T) {
	tok := tokenizer.Default()
	tests := []struct {
		name        string
		query       string
		wantTerms   []string
		wantExclude []string
		wantObjects []string
		wantType    QueryType
	}{
		{"empty", "   ", []string{}, []string{}, []string{}, QueryDefault},
		{"plain", "Install the Package", []string{"install", "package"}, []string{}, []string{"install", "the", "package"}, QueryDefault},
		{"dedupes", "install INSTALL install", []string{"install"}, []string{}, []string{"install"}, QueryDefault},
		{"explicit and", "install AND package", []string{"install", "package"}, []string{}, []string{"install", "package"}, QueryAND},
		{"explicit or", "install OR remove", []string{"install", "remove"}, []string{}, []string{"install", "remove"}, QueryOR},
		{"lower-case keywords are words", "install or remove", []string{"install", "remove"}, []string{}, []string{"install", "or", "remove"}, QueryDefault},
		{"not keyword", "package NOT remove", []string{"package"}, []string{"remove"}, []string{"package"}, QueryDefault},
		{"dash exclude", "package -remove", []string{"package"}, []string{"remove"}, []string{"package"}, QueryDefault},
		{"short words dropped", "go to db", []string{}, []string{}, []string{"go", "to", "db"}, QueryDefault},
		{"hyphenated word splits", "install-guide", []string{"install", "guide"}, []string{}, []string{"install-guide"}, QueryDefault},
		{"dotted object name", "os.path.join()", []string{"path", "join"}, []string{}, []string{"os.path.join"}, QueryDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Parse(tok, tt.query)
			assert.Equal(t, tt.wantTerms, plan.Terms)
			assert.Equal(t, tt.wantExclude, plan.ExcludeTerms)
			assert.Equal(t, tt.wantObjects, plan.ObjectTerms)
			assert.Equal(t, tt.wantType, plan.Type)
			assert.Equal(t, tt.query, plan.RawQuery)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	assert.True(t, Parse(tokenizer.Default(), "").Empty())
	assert.True(t, Parse(tokenizer.Default(), "a an to").Empty())
	assert.False(t, Parse(tokenizer.Default(), "install").Empty())
}
