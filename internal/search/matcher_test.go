package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
)

func buildCorpus(paths ...string) *corpus.Corpus {
	recs := make([]corpus.FileRecord, len(paths))
	for i, p := range paths {
		recs[i] = corpus.FileRecord{Path: p}
	}
	return corpus.Build("", recs)
}

func TestMatcher_EndToEndExample(t *testing.T) {
	// Given: the three-entry corpus
	c := buildCorpus("foo bar", "foo baz", "qux")
	m := NewMatcher(DefaultThreshold)

	// When: matching "foo"
	got := m.Match(c, "foo")

	// Then: both foo entries match, qux does not, ties keep corpus order
	require.Len(t, got, 2)
	assert.Equal(t, "foo bar", got[0].Entry.ID)
	assert.Equal(t, "foo baz", got[1].Entry.ID)
	for _, r := range got {
		require.NotNil(t, r.Score)
		assert.LessOrEqual(t, *r.Score, DefaultThreshold)
	}
}

func TestMatcher_ExactMatchKeepsTruthyScore(t *testing.T) {
	c := buildCorpus("Faust", "Faust II")
	m := NewMatcher(0)

	got := m.Match(c, "faust")

	require.NotEmpty(t, got)
	assert.Equal(t, "Faust", got[0].Entry.ID)
	assert.Equal(t, epsilon, *got[0].Score)
	assert.True(t, got[0].truthy())
}

func TestMatcher_SortedByScore(t *testing.T) {
	// Given: entries with decreasing overlap with the query
	c := buildCorpus("abd", "xyz", "abc")
	m := NewMatcher(DefaultThreshold)

	// When: matching
	got := m.Match(c, "abc")

	// Then: the closer entry ranks first
	require.Len(t, got, 2)
	assert.Equal(t, []string{"abc", "abd"}, []string{got[0].Entry.ID, got[1].Entry.ID})
	assert.Less(t, *got[0].Score, *got[1].Score)
}

func TestMatcher_SkipsBlankIDs(t *testing.T) {
	c := buildCorpus("", "   ", "foo")

	got := NewMatcher(DefaultThreshold).Match(c, "foo")

	require.Len(t, got, 1)
	assert.Equal(t, "foo", got[0].Entry.ID)
}

func TestMatcher_EmptyQueryMatchesNothing(t *testing.T) {
	c := buildCorpus("foo", "bar")

	assert.Empty(t, NewMatcher(DefaultThreshold).Match(c, ""))
}

func TestMatcher_EmptyCorpus(t *testing.T) {
	assert.Empty(t, NewMatcher(DefaultThreshold).Match(corpus.Build(""), "foo"))
	assert.Empty(t, NewMatcher(DefaultThreshold).Match(nil, "foo"))
}

func TestMatcher_ThresholdFilters(t *testing.T) {
	// Given: "abd" scores 1/3 against "abc"
	c := buildCorpus("abd")

	// Then: a tighter threshold drops it
	assert.Len(t, NewMatcher(0.5).Match(c, "abc"), 1)
	assert.Empty(t, NewMatcher(0.2).Match(c, "abc"))
}

func TestMatcher_CJK(t *testing.T) {
	c := buildCorpus("浮士德galgame游戏合集/Faust.zip", "其他/readme.txt")

	got := NewMatcher(DefaultThreshold).Match(c, "浮士德")

	require.NotEmpty(t, got)
	assert.Equal(t, "浮士德galgame游戏合集/Faust.zip", got[0].Entry.ID)
}

func TestMatcher_CancelledContext(t *testing.T) {
	paths := make([]string, 3000)
	for i := range paths {
		paths[i] = fmt.Sprintf("entry-%d", i)
	}
	c := buildCorpus(paths...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := NewMatcher(DefaultThreshold).MatchContext(ctx, c, "entry")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)
}

func TestMatcher_ConcurrentPasses(t *testing.T) {
	c := buildCorpus("foo bar", "foo baz", "qux")
	m := NewMatcher(DefaultThreshold)
	want := m.Match(c, "foo")

	done := make(chan []ScoredEntry, 8)
	for range 8 {
		go func() { done <- m.Match(c, "foo") }()
	}
	for range 8 {
		assert.Equal(t, want, <-done)
	}
}
