package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "install.md"), []byte("# Install Guide\n\nHow to install the package.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "remove.md"), []byte("# Remove\n\nHow to remove the package.\n"), 0o644))
	return dir
}

func TestBuildQueryInspect(t *testing.T) {
	docs := writeDocs(t)
	idx := filepath.Join(t.TempDir(), "out", "searchindex.js")

	out, err := run(t, "build", "--dir", docs, "-o", idx, "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "2 documents")
	assert.FileExists(t, idx)

	out, err = run(t, "query", "-i", idx, "install")
	require.NoError(t, err)
	assert.Contains(t, out, "Install Guide")
	assert.Contains(t, out, "install.md")
	assert.NotContains(t, out, "remove.md")

	out, err = run(t, "query", "-i", idx, "--json", "--mode", "or", "install", "remove")
	require.NoError(t, err)
	var res executor.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "or", res.Mode)
	assert.Equal(t, 2, res.TotalHits)

	out, err = run(t, "query", "-i", idx, "zzzz")
	require.NoError(t, err)
	assert.Contains(t, out, "no results")

	out, err = run(t, "inspect", "-i", idx)
	require.NoError(t, err)
	assert.Contains(t, out, "format:      docsearch")
	assert.Contains(t, out, "documents:   2")
	assert.Contains(t, out, "fingerprint: ")
}

func TestBuildFromJSONL(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "corpus.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(
		`{"docname":"api","title":"API","filename":"api.html","body":"reference","objects":[{"fullname":"pkg.run","type":"py:function"}]}`+"\n"+
			`{oops`+"\n"+
			`{"docname":"","title":"broken","filename":"x.html"}`+"\n",
	), 0o644))
	idx := filepath.Join(dir, "searchindex.json")

	out, err := run(t, "build", "--input", input, "-o", idx, "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "1 documents")
	assert.Contains(t, out, "2 skipped")

	out, err = run(t, "inspect", "-i", idx, "--json")
	require.NoError(t, err)
	var summary indexSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Objects)
	assert.Equal(t, []string{"py:function"}, summary.ObjTypes)
}

func TestInspectRejectsCorruptIndex(t *testing.T) {
	idx := filepath.Join(t.TempDir(), "searchindex.js")
	require.NoError(t, os.WriteFile(idx, []byte("Search.setIndex({\"docnames\": 3})"), 0o644))

	_, err := run(t, "inspect", "-i", idx)
	assert.ErrorIs(t, err, apperrors.ErrFormat)
}

func TestSphinxIndexUsesPorterStemming(t *testing.T) {
	idx := filepath.Join("..", "..", "pkg", "searchindex", "testdata", "sphinx56.js")

	out, err := run(t, "inspect", "-i", idx)
	require.NoError(t, err)
	assert.Contains(t, out, "format:      sphinx")
	assert.Contains(t, out, "porter stemming")

	out, err = run(t, "query", "-i", idx, "installing")
	require.NoError(t, err)
	assert.Contains(t, out, "install.rst")
	assert.NotContains(t, out, "no results")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
	f, err := os.Create(filepath.Join(t.TempDir(), "build.log"))
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isTerminal(f))
}

func TestQueryRequiresWords(t *testing.T) {
	_, err := run(t, "query", "-i", "missing.js")
	assert.Error(t, err)
}

func TestBuildRejectsBadMode(t *testing.T) {
	docs := writeDocs(t)
	idx := filepath.Join(t.TempDir(), "searchindex.js")
	_, err := run(t, "build", "--dir", docs, "-o", idx, "--no-progress")
	require.NoError(t, err)

	_, err = run(t, "query", "-i", idx, "--mode", "fuzzy", "install")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)
}

func TestLoadTestAgainstServer(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("q") == "broken" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	stats, elapsed := runLoadTest(context.Background(), srv.Client(), loadConfig{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    200 * time.Millisecond,
		Limit:       5,
		Queries:     []string{"install", "broken"},
	})
	assert.Greater(t, stats.totalRequests.Load(), int64(0))
	assert.Equal(t, stats.totalRequests.Load(), stats.successCount.Load()+stats.errorCount.Load())
	assert.Greater(t, stats.errorCount.Load(), int64(0))
	assert.GreaterOrEqual(t, hits.Load(), stats.totalRequests.Load())

	var out bytes.Buffer
	printLoadReport(&out, stats, elapsed)
	assert.Contains(t, out.String(), "200: ")
	assert.Contains(t, out.String(), "400: ")
}

func TestLatencyPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), latencyPercentile(sorted, 50))
	assert.Equal(t, time.Duration(10), latencyPercentile(sorted, 99))
	assert.Equal(t, time.Duration(0), latencyPercentile(nil, 50))
}
