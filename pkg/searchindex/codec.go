package searchindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format selects the on-disk encoding.
type Format int

const (
	// FormatJSON is a plain JSON object.
	FormatJSON Format = iota
	// FormatJS wraps the JSON object in a Search.setIndex(...) call so a
	// browser can load it with a script tag.
	FormatJS
)

func (f Format) String() string {
	if f == FormatJS {
		return "js"
	}
	return "json"
}

const (
	jsPrefix = "Search.setIndex("
	jsSuffix = ")"
)

// FormatForPath picks FormatJS for .js files and FormatJSON otherwise.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".js") {
		return FormatJS
	}
	return FormatJSON
}

// Encode writes idx to w in the given format.
func Encode(w io.Writer, idx *Index, format Format) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if format == FormatJS {
		if _, err := io.WriteString(w, jsPrefix); err != nil {
			return err
		}
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if format == FormatJS {
		if _, err := io.WriteString(w, jsSuffix); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses either encoding, including the Sphinx dialect in which object
// keys are bare identifiers. The result is not validated.
func Decode(data []byte) (*Index, error) {
	body := bytes.TrimSpace(data)
	if bytes.HasPrefix(body, []byte(jsPrefix)) {
		body = bytes.TrimSuffix(body, []byte(";"))
		body = bytes.TrimSpace(body)
		if !bytes.HasSuffix(body, []byte(jsSuffix)) {
			return nil, formatErrorf("unterminated %s call", strings.TrimSuffix(jsPrefix, "("))
		}
		body = body[len(jsPrefix) : len(body)-len(jsSuffix)]
		quoted, err := quoteBareKeys(body)
		if err != nil {
			return nil, &FormatError{Reason: "malformed script payload", Err: err}
		}
		body = quoted
	}
	if len(body) == 0 || body[0] != '{' {
		return nil, formatErrorf("payload is not an object")
	}
	var idx Index
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, &FormatError{Reason: "decoding payload", Err: err}
	}
	return &idx, nil
}

// quoteBareKeys rewrites JavaScript object literal keys written as bare
// identifiers ({docnames:[...]}) into JSON strings. Text inside string
// literals is copied unchanged.
func quoteBareKeys(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src)+len(src)/16)
	inString := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString {
			out = append(out, c)
			switch c {
			case '\\':
				if i+1 < len(src) {
					i++
					out = append(out, src[i])
				}
			case '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if !isIdentByte(c) {
			out = append(out, c)
			continue
		}
		j := i
		for j < len(src) && isIdentByte(src[j]) {
			j++
		}
		k := j
		for k < len(src) && isSpace(src[k]) {
			k++
		}
		if k < len(src) && src[k] == ':' && keyPosition(out) {
			out = append(out, '"')
			out = append(out, src[i:j]...)
			out = append(out, '"')
		} else {
			out = append(out, src[i:j]...)
		}
		i = j - 1
	}
	if inString {
		return nil, fmt.Errorf("unterminated string literal")
	}
	return out, nil
}

// keyPosition reports whether the last significant byte written opens an
// object or separates its members.
func keyPosition(out []byte) bool {
	for i := len(out) - 1; i >= 0; i-- {
		if isSpace(out[i]) {
			continue
		}
		return out[i] == '{' || out[i] == ','
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
