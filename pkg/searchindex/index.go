// Package searchindex defines the serialized search index: the immutable
// contract between the index builder and the query engine. The schema follows
// the field names of Sphinx searchindex.js so that indexes produced by either
// tool can be loaded.
package searchindex

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// FormatVersion is the native format tag written by this package.
const FormatVersion = 1

// EnvKey is the envversion entry identifying indexes written by this package.
const EnvKey = "docsearch"

// Postings is a sorted, deduplicated list of document indexes. A list with a
// single entry is encoded as a bare number, matching Sphinx output.
type Postings []int

func (p Postings) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return []byte(strconv.Itoa(p[0])), nil
	}
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(p))
}

func (p *Postings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []int
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*p = list
		return nil
	}
	var single int
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("posting list must be a number or an array of numbers: %w", err)
	}
	*p = Postings{single}
	return nil
}

// Contains reports whether doc is in the posting list. p must be sorted.
func (p Postings) Contains(doc int) bool {
	i := sort.SearchInts(p, doc)
	return i < len(p) && p[i] == doc
}

// ObjectEntry locates a named object inside a document. It is encoded as the
// array [doc, type, priority, anchor].
type ObjectEntry struct {
	Doc      int
	Type     int
	Priority int
	Anchor   string
}

func (o ObjectEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{o.Doc, o.Type, o.Priority, o.Anchor})
}

func (o *ObjectEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 4 {
		return fmt.Errorf("object entry has %d fields, want 4", len(raw))
	}
	if err := json.Unmarshal(raw[0], &o.Doc); err != nil {
		return fmt.Errorf("object doc: %w", err)
	}
	if err := json.Unmarshal(raw[1], &o.Type); err != nil {
		return fmt.Errorf("object type: %w", err)
	}
	if err := json.Unmarshal(raw[2], &o.Priority); err != nil {
		return fmt.Errorf("object priority: %w", err)
	}
	if err := json.Unmarshal(raw[3], &o.Anchor); err != nil {
		return fmt.Errorf("object anchor: %w", err)
	}
	return nil
}

// ObjName describes an object type, encoded as [domain, type, label].
type ObjName struct {
	Domain string
	Type   string
	Label  string
}

func (n ObjName) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{n.Domain, n.Type, n.Label})
}

func (n *ObjName) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("objname has %d fields, want 3", len(raw))
	}
	n.Domain, n.Type, n.Label = raw[0], raw[1], raw[2]
	return nil
}

// TokenizerSettings records how terms were normalized so the query engine can
// tokenize queries identically.
type TokenizerSettings struct {
	MinLength int      `json:"min_length"`
	StopWords []string `json:"stop_words"`
	Stemmer   string   `json:"stemmer,omitempty"`
}

// StemmerPorter names the Porter stemmer in TokenizerSettings.
const StemmerPorter = "porter"

// Index is the in-memory form of a serialized search index. Documents are
// addressed by their position in DocNames; FileNames and Titles are parallel
// to it. Objects maps a dotted prefix to object names within that prefix.
type Index struct {
	Version    int                               `json:"version,omitempty"`
	EnvVersion map[string]int                    `json:"envversion"`
	DocNames   []string                          `json:"docnames"`
	FileNames  []string                          `json:"filenames"`
	Titles     []string                          `json:"titles"`
	Terms      map[string]Postings               `json:"terms"`
	TitleTerms map[string]Postings               `json:"titleterms"`
	Objects    map[string]map[string]ObjectEntry `json:"objects"`
	ObjNames   map[string]ObjName                `json:"objnames"`
	ObjTypes   map[string]string                 `json:"objtypes"`
	Tokenizer  *TokenizerSettings                `json:"tokenizer,omitempty"`
}

// New returns an empty native-format index.
func New() *Index {
	return &Index{
		Version:    FormatVersion,
		EnvVersion: map[string]int{EnvKey: FormatVersion},
		DocNames:   []string{},
		FileNames:  []string{},
		Titles:     []string{},
		Terms:      map[string]Postings{},
		TitleTerms: map[string]Postings{},
		Objects:    map[string]map[string]ObjectEntry{},
		ObjNames:   map[string]ObjName{},
		ObjTypes:   map[string]string{},
	}
}

// IsSphinx reports whether the index was written by Sphinx rather than by
// docsearch.
func (idx *Index) IsSphinx() bool {
	return idx.Version == 0
}

// DocCount returns the number of documents in the index.
func (idx *Index) DocCount() int {
	return len(idx.DocNames)
}

// ObjectCount returns the number of objects across all prefixes.
func (idx *Index) ObjectCount() int {
	n := 0
	for _, names := range idx.Objects {
		n += len(names)
	}
	return n
}

// TypeKey returns the objtypes and objnames key for type index i.
func TypeKey(i int) string {
	return strconv.Itoa(i)
}

// Fingerprint returns the hex SHA-256 of the canonical JSON encoding. Map keys
// are sorted by encoding/json so equal indexes have equal fingerprints.
func (idx *Index) Fingerprint() (string, error) {
	data, err := json.Marshal(idx)
	if err != nil {
		return "", fmt.Errorf("encoding index for fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
