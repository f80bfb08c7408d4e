// Package corpus defines the document records consumed by the index builder
// and the sources that produce them: a directory tree, a JSON Lines export,
// or a PostgreSQL table.
package corpus

import "context"

// Record is one rendered document handed to the index builder.
type Record struct {
	DocName  string   `json:"docname"`
	Title    string   `json:"title"`
	FileName string   `json:"filename"`
	Body     string   `json:"body"`
	Objects  []Object `json:"objects,omitempty"`

	// Err is set by a source when the record could not be read. The
	// builder reports and skips such records instead of failing the build.
	Err error `json:"-"`
}

// Object is a named sub-entity of a document, such as an API symbol, that is
// searchable by name and filterable by type.
type Object struct {
	// FullName is the dotted name, e.g. "pkg.module.func".
	FullName string `json:"fullname"`
	// Type is "domain:type", e.g. "py:function".
	Type string `json:"type"`
	// TypeLabel is the human readable type, e.g. "Python function".
	TypeLabel string `json:"type_label,omitempty"`
	// Anchor is the fragment within the document. Empty means FullName.
	Anchor   string `json:"anchor,omitempty"`
	Priority int    `json:"priority"`
}

// Source produces the records of a corpus in a deterministic order.
type Source interface {
	Name() string
	Records(ctx context.Context) ([]Record, error)
}
