package searchindex

import (
	"fmt"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// DefaultSphinxEnv lists the Sphinx environment versions whose searchindex.js
// layout is understood.
var DefaultSphinxEnv = []int{56}

// FormatError reports an index that is unrecognized or structurally corrupt.
// It matches apperrors.ErrFormat with errors.Is.
type FormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := "search index"
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Is(target error) bool {
	return target == apperrors.ErrFormat
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErrorf(format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// ValidateOptions customises Validate.
type ValidateOptions struct {
	// SphinxEnv lists accepted envversion["sphinx"] values for indexes without
	// a native version tag. Nil means DefaultSphinxEnv.
	SphinxEnv []int
}

// Validate checks the version tag and every cross reference in the index. It
// never repairs anything: the first problem found is returned as a
// *FormatError.
func (idx *Index) Validate(opts ValidateOptions) error {
	if err := idx.checkVersion(opts); err != nil {
		return err
	}
	n := len(idx.DocNames)
	if len(idx.FileNames) != n {
		return formatErrorf("filenames has %d entries, docnames has %d", len(idx.FileNames), n)
	}
	if len(idx.Titles) != n {
		return formatErrorf("titles has %d entries, docnames has %d", len(idx.Titles), n)
	}
	seen := make(map[string]struct{}, n)
	for i, name := range idx.DocNames {
		if name == "" {
			return formatErrorf("docname %d is empty", i)
		}
		if _, dup := seen[name]; dup {
			return formatErrorf("docname %q appears more than once", name)
		}
		seen[name] = struct{}{}
	}
	if err := checkPostings("terms", idx.Terms, n); err != nil {
		return err
	}
	if err := checkPostings("titleterms", idx.TitleTerms, n); err != nil {
		return err
	}
	if t := idx.Tokenizer; t != nil && t.Stemmer != "" && t.Stemmer != StemmerPorter {
		return formatErrorf("unknown tokenizer stemmer %q", t.Stemmer)
	}
	for key := range idx.ObjTypes {
		if _, err := strconv.Atoi(key); err != nil {
			return formatErrorf("objtypes key %q is not an integer", key)
		}
	}
	for prefix, names := range idx.Objects {
		for name, obj := range names {
			if obj.Doc < 0 || obj.Doc >= n {
				return formatErrorf("object %s.%s references document %d of %d", prefix, name, obj.Doc, n)
			}
			if _, ok := idx.ObjTypes[TypeKey(obj.Type)]; !ok {
				return formatErrorf("object %s.%s has unknown type %d", prefix, name, obj.Type)
			}
		}
	}
	return nil
}

func (idx *Index) checkVersion(opts ValidateOptions) error {
	switch idx.Version {
	case FormatVersion:
		return nil
	case 0:
	default:
		return formatErrorf("unsupported format version %d", idx.Version)
	}
	env, ok := idx.EnvVersion["sphinx"]
	if !ok {
		return formatErrorf("missing version tag")
	}
	accepted := opts.SphinxEnv
	if accepted == nil {
		accepted = DefaultSphinxEnv
	}
	for _, v := range accepted {
		if v == env {
			return nil
		}
	}
	return formatErrorf("unsupported sphinx environment version %d", env)
}

func checkPostings(table string, terms map[string]Postings, docs int) error {
	for term, postings := range terms {
		if term == "" {
			return formatErrorf("%s contains an empty term", table)
		}
		for i, doc := range postings {
			if doc < 0 || doc >= docs {
				return formatErrorf("%s[%q] references document %d of %d", table, term, doc, docs)
			}
			if i > 0 && postings[i-1] >= doc {
				return formatErrorf("%s[%q] is not sorted and deduplicated", table, term)
			}
		}
	}
	return nil
}
