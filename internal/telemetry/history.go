package telemetry

import (
	"fmt"
	"time"
)

const dateFormat = "2006-01-02"

// History builds a Snapshot from what store has persisted for the last days
// days up to now. Fallback and repeat counts are not persisted and stay zero.
func History(store Store, days int, now time.Time) (*Snapshot, error) {
	if days <= 0 {
		days = 1
	}
	from := now.AddDate(0, 0, -(days - 1))
	fromDate, toDate := from.Format(dateFormat), now.Format(dateFormat)

	modes, err := store.GetModeCounts(fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("load mode counts: %w", err)
	}
	latencies, err := store.GetLatencyCounts(fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("load latency counts: %w", err)
	}
	terms, err := store.GetTopTerms(10)
	if err != nil {
		return nil, fmt.Errorf("load top terms: %w", err)
	}
	zero, err := store.GetZeroResultQueries(20)
	if err != nil {
		return nil, fmt.Errorf("load zero-result queries: %w", err)
	}

	snap := &Snapshot{
		ModeCounts:          modes,
		TopTerms:            terms,
		ZeroResultQueries:   zero,
		LatencyDistribution: latencies,
		Since:               time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, now.Location()),
	}
	for _, n := range modes {
		snap.TotalQueries += n
	}
	return snap, nil
}
