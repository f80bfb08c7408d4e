// Package parser turns a free-text query into a QueryPlan using the same
// tokenizer that built the index.
package parser

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

// QueryType is an explicit combination requested inside the query text.
type QueryType int

const (
	// QueryDefault defers to the engine's configured mode.
	QueryDefault QueryType = iota
	QueryAND
	QueryOR
)

func (q QueryType) String() string {
	switch q {
	case QueryAND:
		return "AND"
	case QueryOR:
		return "OR"
	default:
		return "default"
	}
}

// QueryPlan is the parsed form of a query. Terms and ExcludeTerms are
// normalized, deduplicated and in first-appearance order.
type QueryPlan struct {
	Terms        []string
	ExcludeTerms []string
	// ObjectTerms are the lowercased words matched as substrings of object
	// names. They skip tokenization so that dotted names survive.
	ObjectTerms []string
	Type        QueryType
	RawQuery    string
}

// Empty reports whether no searchable term survived normalization.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Parse splits query on whitespace. Upper-case AND and OR select the
// combination; NOT or a leading '-' excludes the next word.
func Parse(tok *tokenizer.Tokenizer, query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		ObjectTerms:  make([]string, 0),
		Type:         QueryDefault,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	seen := make(map[string]struct{})
	excluded := make(map[string]struct{})
	objects := make(map[string]struct{})
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch word {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		exclude := excludeNext
		excludeNext = false
		if strings.HasPrefix(word, "-") && len(word) > 1 {
			exclude = true
			word = word[1:]
		}
		for _, term := range tok.Terms(word) {
			if exclude {
				if _, dup := excluded[term]; !dup {
					excluded[term] = struct{}{}
					plan.ExcludeTerms = append(plan.ExcludeTerms, term)
				}
				continue
			}
			if _, dup := seen[term]; !dup {
				seen[term] = struct{}{}
				plan.Terms = append(plan.Terms, term)
			}
		}
		if exclude {
			continue
		}
		if obj := objectTerm(word); obj != "" {
			if _, dup := objects[obj]; !dup {
				objects[obj] = struct{}{}
				plan.ObjectTerms = append(plan.ObjectTerms, obj)
			}
		}
	}
	return plan
}

// objectTerm lowercases word and trims punctuation that cannot be part of a
// dotted object name.
func objectTerm(word string) string {
	return strings.TrimFunc(strings.ToLower(word), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.'
	})
}
