package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
)

// runPasses matches every query against the same corpus snapshot in
// parallel. Result sets come back in query order so the first query seeds
// fusion.
func runPasses(ctx context.Context, m *Matcher, c *corpus.Corpus, queries []string) ([][]ScoredEntry, error) {
	start := time.Now()
	sets := make([][]ScoredEntry, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			res, err := m.MatchContext(gctx, c, q)
			if err != nil {
				return err
			}
			sets[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		sizes := make([]int, len(sets))
		for i, s := range sets {
			sizes[i] = len(s)
		}
		slog.Debug("search_passes_complete",
			slog.Int("passes", len(queries)),
			slog.Any("matches", sizes),
			slog.Int("corpus", c.Len()),
			slog.Duration("duration", time.Since(start)))
	}
	return sets, nil
}
