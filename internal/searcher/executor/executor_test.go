package executor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/searchindex"
)

func buildIndex(t *testing.T, records []corpus.Record) *searchindex.Index {
	t.Helper()
	idx, _, err := indexer.NewBuilder(config.IndexerConfig{Workers: 2, MinTokenLength: 3}, nil).
		Build(context.Background(), records)
	require.NoError(t, err)
	return idx
}

func scenario(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	idx := buildIndex(t, []corpus.Record{
		{DocName: "doc1", Title: "Install Guide", FileName: "doc1.html", Body: "install the package"},
		{DocName: "doc2", Title: "Uninstall", FileName: "doc2.html", Body: "remove package"},
	})
	e, err := New(idx, opts...)
	require.NoError(t, err)
	return e
}

func docNames(res *SearchResult) []string {
	out := make([]string, len(res.Results))
	for i, r := range res.Results {
		out[i] = r.DocName
	}
	return out
}

func TestScenarioInstall(t *testing.T) {
	e := scenario(t)
	res, err := e.Search(context.Background(), "install", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"doc1"}, docNames(res), "doc2 has no install term")
	assert.Equal(t, 20.0, res.Results[0].Score, "title and body match")
	assert.Equal(t, "Install Guide", res.Results[0].Title)
	assert.Equal(t, "doc1.html", res.Results[0].FileName)
	assert.Equal(t, []string{"install"}, res.Results[0].Highlight)
	assert.Equal(t, TermStat{TitleDocs: 1, BodyDocs: 1}, res.TermStats["install"])
	assert.False(t, res.FellBack)
}

func TestEmptyQuery(t *testing.T) {
	e := scenario(t)
	for _, q := range []string{"", "   ", "to a", "-"} {
		res, err := e.Search(context.Background(), q, 10)
		require.NoError(t, err, "query %q", q)
		assert.Empty(t, res.Results, "query %q", q)
		assert.NotNil(t, res.Results)
	}
}

func TestNonexistentTerm(t *testing.T) {
	for _, mode := range []Mode{ModeAnd, ModeAndFallbackOr, ModeOr} {
		t.Run(mode.String(), func(t *testing.T) {
			e := scenario(t, WithMode(mode))
			res, err := e.Search(context.Background(), "nonexistentterm", 0)
			require.NoError(t, err)
			assert.Empty(t, res.Results)
			assert.Zero(t, res.TotalHits)
		})
	}
}

func TestCombinationModes(t *testing.T) {
	tests := []struct {
		name         string
		mode         Mode
		query        string
		want         []string
		wantFellBack bool
	}{
		{"and requires every term", ModeAnd, "install remove", []string{}, false},
		{"fallback to or", ModeAndFallbackOr, "install remove", []string{"doc1", "doc2"}, true},
		{"or scores by matches", ModeOr, "install remove", []string{"doc1", "doc2"}, false},
		{"and intersection", ModeAnd, "package remove", []string{"doc2"}, false},
		{"no fallback needed", ModeAndFallbackOr, "package remove", []string{"doc2"}, false},
		{"shared term ordered by score then name", ModeAnd, "package", []string{"doc1", "doc2"}, false},
		{"query keyword overrides mode", ModeAnd, "install OR remove", []string{"doc1", "doc2"}, false},
		{"AND keyword disables fallback", ModeAndFallbackOr, "install AND remove", []string{}, false},
		{"exclude with NOT", ModeAnd, "package NOT remove", []string{"doc1"}, false},
		{"exclude with dash", ModeOr, "package -install", []string{"doc2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := scenario(t, WithMode(tt.mode))
			res, err := e.Search(context.Background(), tt.query, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, docNames(res))
			assert.Equal(t, tt.wantFellBack, res.FellBack)
		})
	}
}

func TestOrScoresByMatchedTerms(t *testing.T) {
	e := scenario(t, WithMode(ModeOr))
	res, err := e.Search(context.Background(), "install remove", 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, 20.0, res.Results[0].Score)
	assert.Equal(t, 5.0, res.Results[1].Score)
}

func TestPerCallModeOverride(t *testing.T) {
	e := scenario(t, WithMode(ModeAnd))
	res, err := e.SearchWithOptions(context.Background(), "install remove", Options{Mode: ModeOr})
	require.NoError(t, err)
	assert.Equal(t, "or", res.Mode)
	assert.Len(t, res.Results, 2)
}

func TestLimit(t *testing.T) {
	e := scenario(t)
	res, err := e.Search(context.Background(), "package", 1)
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)
	assert.Equal(t, 2, res.TotalHits)

	_, err = e.Search(context.Background(), "package", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)
}

func TestDeterminism(t *testing.T) {
	records := make([]corpus.Record, 0, 30)
	for _, name := range []string{"m", "c", "x", "a", "q", "b", "k", "z", "e", "r"} {
		records = append(records, corpus.Record{
			DocName: "page-" + name, Title: "Topic " + name, FileName: name + ".html",
			Body: "common words appear everywhere",
		})
	}
	e, err := New(buildIndex(t, records))
	require.NoError(t, err)

	first, err := e.Search(context.Background(), "common words", 0)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := e.Search(context.Background(), "common words", 0)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "page-a", first.Results[0].DocName)
	assert.Equal(t, "page-z", first.Results[len(first.Results)-1].DocName)
}

func TestRoundTripAnswersIdentically(t *testing.T) {
	e := scenario(t)
	path := filepath.Join(t.TempDir(), "searchindex.js")
	require.NoError(t, searchindex.WriteFile(path, e.Index()))

	loaded, err := searchindex.Load(path, searchindex.ValidateOptions{})
	require.NoError(t, err)
	e2, err := New(loaded)
	require.NoError(t, err)
	assert.Equal(t, e.Fingerprint(), e2.Fingerprint())

	for _, q := range []string{"install", "package", "install remove", "guide -remove", "", "nonexistentterm"} {
		a, err := e.Search(context.Background(), q, 0)
		require.NoError(t, err)
		b, err := e2.Search(context.Background(), q, 0)
		require.NoError(t, err)
		assert.Equal(t, a, b, "query %q", q)
	}
}

func TestRefusesUnknownFormat(t *testing.T) {
	idx := searchindex.New()
	idx.Version = 7
	_, err := New(idx)
	var fe *searchindex.FormatError
	assert.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, apperrors.ErrFormat)

	_, err = New(nil)
	assert.ErrorIs(t, err, apperrors.ErrIndexNotLoaded)
}

func TestUsesTokenizerRecordedInIndex(t *testing.T) {
	idx, _, err := indexer.NewBuilder(config.IndexerConfig{Workers: 1, MinTokenLength: 2, StopWords: []string{}}, nil).
		Build(context.Background(), []corpus.Record{{DocName: "io", Title: "IO", FileName: "io.html", Body: "go io"}})
	require.NoError(t, err)
	e, err := New(idx)
	require.NoError(t, err)

	res, err := e.Search(context.Background(), "io", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"io"}, docNames(res))
}

func objectIndex(t *testing.T) *searchindex.Index {
	t.Helper()
	return buildIndex(t, []corpus.Record{
		{
			DocName: "api/run", Title: "Running jobs", FileName: "api/run.html", Body: "execute jobs",
			Objects: []corpus.Object{
				{FullName: "jobs.runner.run", Type: "py:function", Priority: 1},
				{FullName: "jobs.runner.Runner", Type: "py:class", Anchor: "class-jobs.runner.Runner", Priority: 0},
			},
		},
		{
			DocName: "api/queue", Title: "Queues", FileName: "api/queue.html", Body: "enqueue jobs",
			Objects: []corpus.Object{
				{FullName: "jobs.queue.rerun", Type: "py:function", Priority: 2},
			},
		},
	})
}

func TestObjectSearch(t *testing.T) {
	e, err := New(objectIndex(t))
	require.NoError(t, err)

	res, err := e.Search(context.Background(), "run", 0)
	require.NoError(t, err)

	objects := map[string]Result{}
	for _, r := range res.Results {
		if r.Object != "" {
			objects[r.Object] = r
		}
	}
	require.Contains(t, objects, "jobs.runner.run")
	assert.Equal(t, 16.0, objects["jobs.runner.run"].Score, "exact name plus priority 1")
	assert.Equal(t, "jobs.runner.run", objects["jobs.runner.run"].Anchor)
	assert.Equal(t, "py:function", objects["jobs.runner.run"].ObjectType)
	assert.Equal(t, "api/run.html", objects["jobs.runner.run"].FileName)

	assert.Equal(t, 21.0, objects["jobs.runner.Runner"].Score, "partial match plus priority 0")
	assert.Equal(t, "class-jobs.runner.Runner", objects["jobs.runner.Runner"].Anchor)
	assert.Equal(t, 1.0, objects["jobs.queue.rerun"].Score, "partial match plus priority 2")

	assert.Equal(t, "jobs.runner.Runner", res.Results[0].Object)
}

func TestObjectTypeFilter(t *testing.T) {
	e, err := New(objectIndex(t))
	require.NoError(t, err)

	res, err := e.SearchWithOptions(context.Background(), "run", Options{ObjectTypes: []string{"py:class"}})
	require.NoError(t, err)
	for _, r := range res.Results {
		if r.Object != "" {
			assert.Equal(t, "py:class", r.ObjectType)
		}
	}
}

func TestSphinxIndex(t *testing.T) {
	idx, err := searchindex.Load(filepath.Join("..", "..", "..", "pkg", "searchindex", "testdata", "sphinx56.js"), searchindex.ValidateOptions{})
	require.NoError(t, err)
	e, err := New(idx, WithTokenizer(tokenizer.Default()))
	require.NoError(t, err)
	assert.Equal(t, tokenizer.StemmerPorter, e.Tokenizer().Settings().Stemmer)

	for _, q := range []string{"install", "installing", "Install Guide", "instal"} {
		res, err := e.Search(context.Background(), q, 0)
		require.NoError(t, err, q)
		require.NotEmpty(t, res.Results, q)
		assert.Equal(t, "install", res.Results[0].DocName, q)
	}

	res, err := e.Search(context.Background(), "install", 0)
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.Results[0].Score)

	res, err = e.Search(context.Background(), "stop", 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "function-pkg.mod.stop", res.Results[0].Anchor)
}

func TestConcurrentSearches(t *testing.T) {
	e := scenario(t)
	want, err := e.Search(context.Background(), "install package", 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := e.Search(context.Background(), "install package", 0)
				if assert.NoError(t, err) {
					assert.Equal(t, want, got)
				}
			}
		}()
	}
	wg.Wait()
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeDefault, "AND": ModeAnd, "or": ModeOr, "and_fallback_or": ModeAndFallbackOr} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("xor")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)
}
