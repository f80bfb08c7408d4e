// Package index holds the mutable, per-worker accumulation structure used
// while building a search index.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/searchindex"
)

// docSet is the set of document keys containing a term.
type docSet map[int]struct{}

// PartialIndex accumulates term membership for a subset of documents. It is
// not safe for concurrent use: each build worker owns one, and partials are
// combined with Merge once the workers finish.
type PartialIndex struct {
	body  map[string]docSet
	title map[string]docSet
	docs  map[int]struct{}
}

func NewPartialIndex() *PartialIndex {
	return &PartialIndex{
		body:  make(map[string]docSet),
		title: make(map[string]docSet),
		docs:  make(map[int]struct{}),
	}
}

// AddDocument records presence of each term for doc. Repeated terms collapse
// to a single membership.
func (p *PartialIndex) AddDocument(doc int, titleTerms, bodyTerms []string) {
	p.docs[doc] = struct{}{}
	add(p.title, doc, titleTerms)
	add(p.body, doc, bodyTerms)
}

func add(table map[string]docSet, doc int, terms []string) {
	for _, term := range terms {
		set, ok := table[term]
		if !ok {
			set = make(docSet)
			table[term] = set
		}
		set[doc] = struct{}{}
	}
}

// Merge folds other into p as a set union. other must not be used afterwards.
func (p *PartialIndex) Merge(other *PartialIndex) {
	for doc := range other.docs {
		p.docs[doc] = struct{}{}
	}
	mergeTable(p.title, other.title)
	mergeTable(p.body, other.body)
}

func mergeTable(dst, src map[string]docSet) {
	for term, set := range src {
		existing, ok := dst[term]
		if !ok {
			dst[term] = set
			continue
		}
		for doc := range set {
			existing[doc] = struct{}{}
		}
	}
}

// DocCount returns the number of distinct documents added.
func (p *PartialIndex) DocCount() int {
	return len(p.docs)
}

// Freeze returns sorted posting lists for the body and title tables. The
// partial may still be read afterwards but the result does not alias it.
func (p *PartialIndex) Freeze() (body, title map[string]searchindex.Postings) {
	return freezeTable(p.body), freezeTable(p.title)
}

func freezeTable(table map[string]docSet) map[string]searchindex.Postings {
	out := make(map[string]searchindex.Postings, len(table))
	for term, set := range table {
		postings := make(searchindex.Postings, 0, len(set))
		for doc := range set {
			postings = append(postings, doc)
		}
		sort.Ints(postings)
		out[term] = postings
	}
	return out
}
