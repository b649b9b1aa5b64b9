package search

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
	"github.com/shinnku-archive/archivesearch/internal/translit"
)

// =============================================================================
// Ranking benchmarks
// =============================================================================
// Targets on a 50k-entry corpus:
// - Matcher.Match: < 100ms per query
// - MeanScoreFusion: < 5ms for two 5k-entry sets
// =============================================================================

var benchWords = []string{
	"summer", "pockets", "faust", "魔法使いの夜", "浮士德", "reflection", "blue",
	"完全版", "汉化", "steam", "dlc", "ost", "v1.02", "patch", "collection",
}

func benchCorpus(n int) *corpus.Corpus {
	r := rand.New(rand.NewSource(42))
	recs := make([]corpus.FileRecord, n)
	for i := range recs {
		words := 2 + r.Intn(4)
		name := ""
		for w := range words {
			if w > 0 {
				name += " "
			}
			name += benchWords[r.Intn(len(benchWords))]
		}
		recs[i] = corpus.FileRecord{
			Path: fmt.Sprintf("合集系列/%s %d.zip", name, i),
			Size: int64(r.Intn(1 << 30)),
		}
	}
	return corpus.Build("合集系列/", recs)
}

func BenchmarkMatcher_Match(b *testing.B) {
	for _, size := range []int{1000, 10000, 50000} {
		b.Run(fmt.Sprintf("entries_%d", size), func(b *testing.B) {
			c := benchCorpus(size)
			m := NewMatcher(DefaultThreshold)

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = m.Match(c, "summer pockets")
			}
		})
	}
}

func BenchmarkMeanScoreFusion(b *testing.B) {
	c := benchCorpus(10000)
	m := NewMatcher(1.0)
	a := m.Match(c, "faust")
	bb := m.Match(c, "浮士德")
	f := NewMeanScoreFusion()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = f.Fuse([][]ScoredEntry{a, bb}, DefaultLimit)
	}
}

func BenchmarkEngine_SearchCombined(b *testing.B) {
	engine, err := NewEngine(corpus.NewHolder(benchCorpus(10000)),
		WithConverter(translit.Identity{}))
	if err != nil {
		b.Fatalf("NewEngine failed: %v", err)
	}
	defer func() { _ = engine.Close() }()
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := engine.SearchCombined(ctx, "summer pockets", "blue reflection", DefaultLimit); err != nil {
			b.Fatalf("SearchCombined failed: %v", err)
		}
	}
}
