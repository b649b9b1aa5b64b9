package search

import (
	"sort"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
)

// MeanScoreFusion merges pass results by averaging the scores of entries
// that share an id.
//
// Algorithm:
//  1. Seed with the entries of the first set that have a non-zero score.
//  2. For every scored entry of a later set, average its score into the
//     first accumulated entry with the same id, or append it.
//  3. Stable sort ascending by score, then truncate to limit.
//
// Entries found by only one pass keep their score, so agreement between
// passes is not rewarded beyond averaging.
type MeanScoreFusion struct{}

// NewMeanScoreFusion returns the fuser.
func NewMeanScoreFusion() *MeanScoreFusion {
	return &MeanScoreFusion{}
}

// Fuse combines result sets and returns at most limit entries, best first.
// A non-positive limit yields an empty result.
func (f *MeanScoreFusion) Fuse(sets [][]ScoredEntry, limit int) []corpus.Entry {
	return Entries(f.FuseScored(sets, limit))
}

// FuseScored is Fuse keeping the fused scores.
func (f *MeanScoreFusion) FuseScored(sets [][]ScoredEntry, limit int) []ScoredEntry {
	if limit <= 0 || len(sets) == 0 {
		return []ScoredEntry{}
	}

	size := 0
	for _, s := range sets {
		size += len(s)
	}
	acc := make([]ScoredEntry, 0, size)
	first := make(map[string]int, size)

	add := func(e ScoredEntry) {
		if _, ok := first[e.Entry.ID]; !ok {
			first[e.Entry.ID] = len(acc)
		}
		acc = append(acc, e)
	}

	for _, e := range sets[0] {
		if e.truthy() {
			add(e)
		}
	}

	for _, set := range sets[1:] {
		for _, e := range set {
			if !e.truthy() {
				continue
			}
			i, ok := first[e.Entry.ID]
			if !ok {
				add(e)
				continue
			}
			if !acc[i].truthy() {
				continue
			}
			mean := acc[i].value()/2 + e.value()/2
			acc[i].Score = &mean
		}
	}

	sort.SliceStable(acc, func(a, b int) bool {
		return acc[a].value() < acc[b].value()
	})

	if len(acc) > limit {
		acc = acc[:limit]
	}
	return acc
}
