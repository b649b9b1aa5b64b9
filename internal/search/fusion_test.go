package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
)

func se(id string, score float64) ScoredEntry {
	return Scored(corpus.Entry{ID: id}, score)
}

func ids(entries []corpus.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func scoreOf(t *testing.T, fused []ScoredEntry, id string) float64 {
	t.Helper()
	for _, e := range fused {
		if e.Entry.ID == id {
			require.NotNil(t, e.Score)
			return *e.Score
		}
	}
	t.Fatalf("id %q not in result", id)
	return 0
}

func TestFuse_AveragesSharedIDs(t *testing.T) {
	// Given: the same id scored 0.2 and 0.4 by two passes
	f := NewMeanScoreFusion()
	sets := [][]ScoredEntry{
		{se("a", 0.2)},
		{se("a", 0.4)},
	}

	// When: fusing
	fused := f.FuseScored(sets, 10)

	// Then: one entry with the mean score
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.3, *fused[0].Score, 1e-12)
}

func TestFuse_SingleSetEntriesKeepScore(t *testing.T) {
	f := NewMeanScoreFusion()
	sets := [][]ScoredEntry{
		{se("a", 0.1)},
		{se("b", 0.5)},
	}

	fused := f.FuseScored(sets, 10)

	require.Len(t, fused, 2)
	assert.Equal(t, 0.1, scoreOf(t, fused, "a"))
	assert.Equal(t, 0.5, scoreOf(t, fused, "b"))
}

func TestFuse_ZeroScoresExcluded(t *testing.T) {
	// Given: a zero score in the seed set and in a later set
	f := NewMeanScoreFusion()
	sets := [][]ScoredEntry{
		{se("a", 0), se("b", 0.3)},
		{se("c", 0), se("b", 0)},
	}

	// When: fusing
	got := f.Fuse(sets, 10)

	// Then: only b survives and its score is untouched by the zero
	assert.Equal(t, []string{"b"}, ids(got))
	assert.Equal(t, 0.3, scoreOf(t, f.FuseScored(sets, 10), "b"))
}

func TestFuse_NilScoresExcluded(t *testing.T) {
	f := NewMeanScoreFusion()
	sets := [][]ScoredEntry{
		{{Entry: corpus.Entry{ID: "a"}}, se("b", 0.3)},
		{{Entry: corpus.Entry{ID: "b"}}},
	}

	fused := f.FuseScored(sets, 10)

	require.Len(t, fused, 1)
	assert.Equal(t, "b", fused[0].Entry.ID)
	assert.Equal(t, 0.3, *fused[0].Score)
}

func TestFuse_LimitBounds(t *testing.T) {
	f := NewMeanScoreFusion()
	sets := [][]ScoredEntry{
		{se("a", 0.1), se("b", 0.2), se("c", 0.3)},
		{se("d", 0.4), se("e", 0.5)},
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero limit", 0, 0},
		{"negative limit", -1, 0},
		{"smaller than results", 2, 2},
		{"larger than results", 50, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Fuse(sets, tt.limit)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestFuse_SortedAscending(t *testing.T) {
	// Given: interleaved scores across passes
	f := NewMeanScoreFusion()
	sets := [][]ScoredEntry{
		{se("a", 0.7), se("b", 0.1), se("c", 0.4)},
		{se("a", 0.1), se("d", 0.05), se("c", 0.6)},
	}

	// When: fusing
	fused := f.FuseScored(sets, 10)

	// Then: scores never decrease
	for i := 1; i < len(fused); i++ {
		assert.LessOrEqual(t, *fused[i-1].Score, *fused[i].Score)
	}
	assert.Equal(t, "d", fused[0].Entry.ID)
}

func TestFuse_StableOnTies(t *testing.T) {
	f := NewMeanScoreFusion()
	sets := [][]ScoredEntry{
		{se("x", 0.2), se("y", 0.2)},
		{se("z", 0.2)},
	}

	got := f.Fuse(sets, 10)

	assert.Equal(t, []string{"x", "y", "z"}, ids(got))
}

func TestFuse_Idempotent(t *testing.T) {
	f := NewMeanScoreFusion()
	sets := [][]ScoredEntry{
		{se("a", 0.3), se("b", 0.2)},
		{se("b", 0.6), se("c", 0.1)},
	}

	first := f.FuseScored(sets, 10)
	second := f.FuseScored(sets, 10)

	assert.Equal(t, first, second)
	// Inputs are not modified by merging.
	assert.Equal(t, 0.2, *sets[0][1].Score)
}

func TestFuse_DuplicateIDsFirstSeenWins(t *testing.T) {
	// Given: the seed set holds the same id twice
	f := NewMeanScoreFusion()
	sets := [][]ScoredEntry{
		{se("dup", 0.2), se("dup", 0.6)},
		{se("dup", 0.4)},
	}

	// When: fusing
	fused := f.FuseScored(sets, 10)

	// Then: both seeds stay, only the first absorbs the later score
	require.Len(t, fused, 2)
	assert.InDelta(t, 0.3, *fused[0].Score, 1e-12)
	assert.Equal(t, 0.6, *fused[1].Score)
}

func TestFuse_LaterSetDuplicatesMergeIntoAppended(t *testing.T) {
	f := NewMeanScoreFusion()
	sets := [][]ScoredEntry{
		{se("a", 0.5)},
		{se("b", 0.2), se("b", 0.4)},
	}

	fused := f.FuseScored(sets, 10)

	require.Len(t, fused, 2)
	assert.InDelta(t, 0.3, scoreOf(t, fused, "b"), 1e-12)
}

func TestFuse_NoSets(t *testing.T) {
	f := NewMeanScoreFusion()

	assert.Empty(t, f.Fuse(nil, 10))
	assert.Empty(t, f.Fuse([][]ScoredEntry{{}, {}}, 10))
}
