package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

func TestObjectGramsCandidates(t *testing.T) {
	e, err := New(objectIndex(t))
	require.NoError(t, err)
	require.Len(t, e.objects, 3)

	tests := []struct {
		name   string
		words  []string
		want   []int
		wantOK bool
	}{
		{"shared prefix", []string{"jobs"}, []int{0, 1, 2}, true},
		{"one module", []string{"runner"}, []int{1, 2}, true},
		{"two words narrow", []string{"queue", "run"}, []int{0}, true},
		{"missing trigram", []string{"xyz"}, nil, true},
		{"no overlap", []string{"queue", "runner"}, nil, true},
		{"too short to narrow", []string{"ru"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, ok := e.objGrams.candidates(tt.words)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestObjectGramsAgreeWithScan(t *testing.T) {
	e, err := New(objectIndex(t))
	require.NoError(t, err)

	for _, words := range [][]string{
		{"run"}, {"rerun"}, {"jobs.runner"}, {"r.run"}, {"queue", "jobs"}, {"ner.r"}, {"nope"},
	} {
		var scanned []int
		for i, obj := range e.objects {
			if ranker.MatchesObject(obj.lowerFull, words) {
				scanned = append(scanned, i)
			}
		}
		ids, ok := e.objGrams.candidates(words)
		require.True(t, ok, words)
		var matched []int
		for _, id := range ids {
			if ranker.MatchesObject(e.objects[id].lowerFull, words) {
				matched = append(matched, id)
			}
		}
		assert.Equal(t, scanned, matched, words)
	}
}

func TestObjectGramsRepeatedTrigram(t *testing.T) {
	grams := newObjectGrams([]object{{lowerFull: "abcabc"}, {lowerFull: "xabc"}})
	assert.Equal(t, []int{0, 1}, grams["abc"])
	assert.Equal(t, []int{0}, grams["bca"])
}

func TestIntersectSorted(t *testing.T) {
	assert.Equal(t, []int{2, 5}, intersectSorted([]int{1, 2, 5, 9}, []int{2, 3, 5}))
	assert.Empty(t, intersectSorted([]int{1}, []int{2}))
}
