// Package validator checks document records before they reach the index
// builder and returns per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const (
	maxDocNameLength = 1024
	maxTitleLength   = 1024
	maxBodyLength    = 16 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	DocName string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match apperrors.ErrBuildInput.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrBuildInput
}

// ValidateRecord checks that a record carries every required field and that
// its objects are well formed.
func ValidateRecord(rec *corpus.Record) error {
	errs := make(map[string]string)

	name := strings.TrimSpace(rec.DocName)
	switch {
	case name == "":
		errs["docname"] = "docname is required"
	case len(name) > maxDocNameLength:
		errs["docname"] = fmt.Sprintf("docname must be at most %d characters", maxDocNameLength)
	}
	title := strings.TrimSpace(rec.Title)
	switch {
	case title == "":
		errs["title"] = "title is required"
	case len(title) > maxTitleLength:
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if strings.TrimSpace(rec.FileName) == "" {
		errs["filename"] = "filename is required"
	}
	if len(rec.Body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d bytes", maxBodyLength)
	}
	for i, obj := range rec.Objects {
		field := fmt.Sprintf("objects[%d]", i)
		if strings.TrimSpace(obj.FullName) == "" {
			errs[field] = "fullname is required"
			continue
		}
		domain, typ, ok := strings.Cut(obj.Type, ":")
		if !ok || domain == "" || typ == "" {
			errs[field] = fmt.Sprintf("type %q must have the form domain:type", obj.Type)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{DocName: rec.DocName, Fields: errs}
	}
	return nil
}
