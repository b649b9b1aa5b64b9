package search

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
	"github.com/shinnku-archive/archivesearch/internal/fuzzy"
)

// epsilon replaces a perfect score so exact matches stay truthy in fusion.
const epsilon = 2.220446049250313e-16

// checkEvery is how many entries a pass scans between context checks.
const checkEvery = 1024

// Matcher runs one fuzzy pass over the id of every corpus entry.
type Matcher struct {
	opts fuzzy.Options
}

// NewMatcher returns a matcher keeping scores up to threshold. A
// non-positive threshold selects DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	opts := fuzzy.DefaultOptions()
	opts.Threshold = threshold
	opts.IgnoreLocation = true
	return &Matcher{opts: opts}
}

// Threshold returns the configured cut-off.
func (m *Matcher) Threshold() float64 {
	return m.opts.Threshold
}

// Match scores every entry of c against query and returns the matches,
// best first.
func (m *Matcher) Match(c *corpus.Corpus, query string) []ScoredEntry {
	out, _ := m.MatchContext(context.Background(), c, query)
	return out
}

// MatchContext is Match with cancellation. It returns ctx.Err() if the
// context ends before the pass finishes.
func (m *Matcher) MatchContext(ctx context.Context, c *corpus.Corpus, query string) ([]ScoredEntry, error) {
	type hit struct {
		index int
		score float64
	}

	pattern := fuzzy.Compile(query, m.opts)
	var hits []hit

	for i, e := range c.Entries() {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if strings.TrimSpace(e.ID) == "" {
			continue
		}

		r := pattern.Match(e.ID)
		if !r.IsMatch || r.Score > m.opts.Threshold {
			continue
		}
		hits = append(hits, hit{index: i, score: math.Max(r.Score, epsilon)})
	}

	// hits are in corpus order, so a stable sort breaks ties by index.
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score < hits[b].score
	})

	out := make([]ScoredEntry, len(hits))
	for i, h := range hits {
		out[i] = Scored(c.At(h.index), h.score)
	}
	return out, nil
}
