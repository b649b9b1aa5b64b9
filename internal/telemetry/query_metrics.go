// Package telemetry records query patterns locally so operators can see which
// searches come back empty and how long each search mode takes. Nothing is
// reported externally.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Mode is the search path that served a query.
type Mode string

const (
	ModeDefault  Mode = "default"
	ModeAssisted Mode = "assisted"
	ModeCombined Mode = "combined"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one served search.
type QueryEvent struct {
	Query       string
	Mode        Mode
	ResultCount int
	Latency     time.Duration
	// Fallback is set when an assisted search was answered by the default path.
	Fallback  bool
	Timestamp time.Time
}

// IsZeroResult reports whether the query returned nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// ExtractTerms splits a query into lower-cased terms of at least two runes.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) >= 2 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	ModeCounts          map[Mode]int64          `json:"mode_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	FallbackCount       int64                   `json:"fallback_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of zero-result queries in percent.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Store persists flushed metrics.
type Store interface {
	SaveModeCounts(date string, counts map[Mode]int64) error
	GetModeCounts(from, to string) (map[Mode]int64, error)
	UpsertTermCounts(terms map[string]int64) error
	GetTopTerms(limit int) ([]TermCount, error)
	AddZeroResultQueries(queries []string, at time.Time) error
	GetZeroResultQueries(limit int) ([]string, error)
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)
	Close() error
}

// Config configures the collector.
type Config struct {
	TopTermsCapacity      int
	ZeroResultsCapacity   int
	RecentQueriesCapacity int
	// FlushInterval is how often deltas go to the store. 0 disables auto-flush.
	FlushInterval time.Duration
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// pending holds counts recorded since the last flush.
type pending struct {
	modes     map[Mode]int64
	terms     map[string]int64
	latencies map[LatencyBucket]int64
	zero      []string
}

func newPending() pending {
	return pending{
		modes:     make(map[Mode]int64),
		terms:     make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
	}
}

// QueryMetrics collects query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	modes            map[Mode]int64
	topTerms         *lru.Cache[string, int64]
	zeroResults      *CircularBuffer[string]
	latencies        map[LatencyBucket]int64
	recentQueries    *lru.Cache[string, struct{}]
	totalQueries     int64
	zeroResultCount  int64
	fallbackCount    int64
	exactRepeatCount int64
	startTime        time.Time

	delta  pending
	store  Store
	stopCh chan struct{}
	done   chan struct{}
	closed bool
}

// NewQueryMetrics creates a collector. A nil store keeps metrics in memory.
func NewQueryMetrics(store Store, cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		modes:         make(map[Mode]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		recentQueries: recent,
		startTime:     time.Now(),
		delta:         newPending(),
		store:         store,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		go m.flushLoop(cfg.FlushInterval)
	} else {
		close(m.done)
	}
	return m
}

func (m *QueryMetrics) flushLoop(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Flush(); err != nil {
				slog.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
			}
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one query. Non-blocking apart from the collector mutex.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.modes[event.Mode]++
	m.delta.modes[event.Mode]++
	m.totalQueries++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.delta.terms[term]++
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
		m.delta.zero = append(m.delta.zero, event.Query)
	}
	if event.Fallback {
		m.fallbackCount++
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.delta.latencies[bucket]++

	key := hashQuery(event.Query)
	if _, seen := m.recentQueries.Get(key); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(key, struct{}{})
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns the metrics collected since start.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	modes := make(map[Mode]int64, len(m.modes))
	for k, v := range m.modes {
		modes[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	var terms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})

	return &Snapshot{
		ModeCounts:          modes,
		TopTerms:            terms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		FallbackCount:       m.fallbackCount,
		ExactRepeatCount:    m.exactRepeatCount,
		Since:               m.startTime,
	}
}

// Flush writes the counts recorded since the previous flush to the store.
// On error the deltas are kept for the next attempt.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	d := m.delta
	m.delta = newPending()
	m.mu.Unlock()

	if err := m.write(&d); err != nil {
		m.mu.Lock()
		m.delta.merge(d)
		m.mu.Unlock()
		return err
	}
	return nil
}

// write clears each part of d once it is stored, so a failed flush only
// re-queues what was not written.
func (m *QueryMetrics) write(d *pending) error {
	now := time.Now()
	today := now.Format(dateFormat)

	if len(d.modes) > 0 {
		if err := m.store.SaveModeCounts(today, d.modes); err != nil {
			return err
		}
		d.modes = nil
	}
	if len(d.terms) > 0 {
		if err := m.store.UpsertTermCounts(d.terms); err != nil {
			return err
		}
		d.terms = nil
	}
	if len(d.latencies) > 0 {
		if err := m.store.SaveLatencyCounts(today, d.latencies); err != nil {
			return err
		}
		d.latencies = nil
	}
	if len(d.zero) > 0 {
		if err := m.store.AddZeroResultQueries(d.zero, now); err != nil {
			return err
		}
	}
	return nil
}

func (p *pending) merge(o pending) {
	for k, v := range o.modes {
		p.modes[k] += v
	}
	for k, v := range o.terms {
		p.terms[k] += v
	}
	for k, v := range o.latencies {
		p.latencies[k] += v
	}
	p.zero = append(o.zero, p.zero...)
}

// Close stops auto-flush, flushes once more and closes the store.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopCh)
	<-m.done

	flushErr := m.Flush()
	if m.store != nil {
		if err := m.store.Close(); err != nil && flushErr == nil {
			return err
		}
	}
	return flushErr
}
