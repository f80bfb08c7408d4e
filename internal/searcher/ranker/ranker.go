// Package ranker scores candidate documents and objects with fixed title,
// body and object-name weights and orders them deterministically.
package ranker

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/searchindex"
)

// Weights are the score contributions of each kind of match.
type Weights struct {
	Title float64
	Body  float64
	// ObjectName applies when a query word equals the object's full name or
	// its last component; ObjectPartial applies to substring matches.
	ObjectName     float64
	ObjectPartial  float64
	ObjectPriority map[int]float64
}

// DefaultWeights mirrors the Sphinx client scorer.
func DefaultWeights() Weights {
	return Weights{
		Title:          15,
		Body:           5,
		ObjectName:     11,
		ObjectPartial:  6,
		ObjectPriority: map[int]float64{0: 15, 1: 5, 2: -5},
	}
}

// ScoredDoc is one ranked hit. Ref is opaque to the ranker and lets the
// caller find the payload the hit was built from.
type ScoredDoc struct {
	DocName string
	Anchor  string
	Object  string
	Score   float64
	Ref     int
}

// TermTables gives the title and body posting lists of an index.
type TermTables struct {
	Title map[string]searchindex.Postings
	Body  map[string]searchindex.Postings
}

// ScoreDocument sums, per distinct term, the title weight if doc has the
// term in its title and the body weight if it has it in its body. It also
// returns the terms that matched.
func ScoreDocument(doc int, terms []string, tables TermTables, w Weights) (float64, []string) {
	var score float64
	matched := make([]string, 0, len(terms))
	for _, term := range terms {
		hit := false
		if tables.Title[term].Contains(doc) {
			score += w.Title
			hit = true
		}
		if tables.Body[term].Contains(doc) {
			score += w.Body
			hit = true
		}
		if hit {
			matched = append(matched, term)
		}
	}
	return score, matched
}

// ScoreObject scores an object already known to contain every query word.
// fullName and name must be lower case.
func ScoreObject(fullName, name string, words []string, priority int, w Weights) float64 {
	score := w.ObjectPartial
	for _, word := range words {
		if word == fullName || word == name {
			score = w.ObjectName
			break
		}
	}
	return score + w.ObjectPriority[priority]
}

// MatchesObject reports whether every word is a substring of fullName.
func MatchesObject(fullName string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	for _, word := range words {
		if !strings.Contains(fullName, word) {
			return false
		}
	}
	return true
}

// Rank orders hits by descending score, then docname, anchor and object
// name, and truncates to limit when limit > 0. It sorts in place.
func Rank(hits []ScoredDoc, limit int) []ScoredDoc {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DocName != b.DocName {
			return a.DocName < b.DocName
		}
		if a.Anchor != b.Anchor {
			return a.Anchor < b.Anchor
		}
		return a.Object < b.Object
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
