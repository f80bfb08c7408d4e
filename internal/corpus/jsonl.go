package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const maxJSONLLine = 64 << 20

// JSONLSource reads one JSON-encoded Record per line. Blank lines are
// skipped; records keep their file order.
type JSONLSource struct {
	path   string
	open   func() (io.ReadCloser, error)
	logger *slog.Logger
}

func NewJSONLSource(path string) *JSONLSource {
	return &JSONLSource{
		path:   path,
		open:   func() (io.ReadCloser, error) { return os.Open(path) },
		logger: slog.Default().With("component", "corpus-jsonl", "path", path),
	}
}

// NewJSONLReader reads records from r, for example standard input.
func NewJSONLReader(name string, r io.Reader) *JSONLSource {
	return &JSONLSource{
		path:   name,
		open:   func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		logger: slog.Default().With("component", "corpus-jsonl", "path", name),
	}
}

func (s *JSONLSource) Name() string {
	return "jsonl:" + s.path
}

func (s *JSONLSource) Records(ctx context.Context) ([]Record, error) {
	rc, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJSONLLine)
	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			rec = Record{Err: apperrors.Newf(apperrors.ErrBuildInput, http.StatusBadRequest,
				"%s line %d: %v", s.path, line, err)}
			s.logger.Warn("unreadable record", "line", line, "error", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	s.logger.Info("corpus read", "records", len(records))
	return records, nil
}
