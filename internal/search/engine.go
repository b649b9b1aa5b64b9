package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
	"github.com/shinnku-archive/archivesearch/internal/telemetry"
	"github.com/shinnku-archive/archivesearch/internal/translit"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine serves default, assisted and combined searches over the corpus
// published by a Holder.
type Engine struct {
	holder    *corpus.Holder
	matcher   *Matcher
	fusion    *MeanScoreFusion
	converter translit.Converter
	suggester Suggester
	reform    *Reformulator
	pool      *Pool
	ownsPool  bool
	metrics   *Metrics // Optional Prometheus collectors
	recorder  Recorder // Optional query telemetry
	threshold float64
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(t float64) EngineOption {
	return func(e *Engine) {
		e.threshold = t
	}
}

// WithConverter sets the script converter. The default is translit.LoadDefault().
func WithConverter(c translit.Converter) EngineOption {
	return func(e *Engine) {
		e.converter = c
	}
}

// WithSuggester sets the name-suggestion source used by assisted searches.
// Without one, assisted searches run with an empty suggestion.
func WithSuggester(s Suggester) EngineOption {
	return func(e *Engine) {
		e.suggester = s
	}
}

// WithPool runs pooled searches on p. The caller keeps ownership of p.
func WithPool(p *Pool) EngineOption {
	return func(e *Engine) {
		e.pool = p
	}
}

// WithMetrics sets Prometheus collectors.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRecorder sets an optional query telemetry sink.
// When set, every search reports mode, latency and result count.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// NewEngine creates a search engine reading from holder.
func NewEngine(holder *corpus.Holder, opts ...EngineOption) (*Engine, error) {
	if holder == nil {
		return nil, fmt.Errorf("%w: corpus holder is required", ErrNilDependency)
	}
	e := &Engine{
		holder:    holder,
		fusion:    NewMeanScoreFusion(),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.converter == nil {
		conv, err := translit.LoadDefault()
		if err != nil {
			return nil, fmt.Errorf("load default transliteration: %w", err)
		}
		e.converter = conv
	}
	if e.pool == nil {
		e.pool = NewPool(0, WithPoolMetrics(e.metrics))
		e.ownsPool = true
	}
	e.matcher = NewMatcher(e.threshold)
	e.reform = NewReformulator(e.converter, e.suggester)
	return e, nil
}

// Corpus returns the snapshot new searches will read.
func (e *Engine) Corpus() *corpus.Corpus {
	return e.holder.Load()
}

// Reformulate exposes the query variants a search would use.
func (e *Engine) Reformulate(ctx context.Context, query string, withSuggestion bool) Reformulation {
	return e.reform.Reformulate(ctx, query, withSuggestion)
}

// SearchDefault runs a single pass on the raw query followed by its
// transliteration. It runs inline on the caller's goroutine and only fails
// when ctx ends.
func (e *Engine) SearchDefault(ctx context.Context, query string, limit int) ([]corpus.Entry, error) {
	start := time.Now()
	res, err := e.searchDefault(ctx, query, limit)
	e.observe(ModeDefault, query, start, len(res), err, false)
	return res, err
}

func (e *Engine) searchDefault(ctx context.Context, query string, limit int) ([]corpus.Entry, error) {
	if limit <= 0 {
		return []corpus.Entry{}, nil
	}
	r := e.reform.Reformulate(ctx, query, false)
	scored, err := e.matcher.MatchContext(ctx, e.holder.Load(), r.DefaultQuery())
	if err != nil {
		return nil, contextError(err)
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return Entries(scored), nil
}

// SearchAssisted enriches the query with a suggested name, runs the
// suggestion and transliteration passes concurrently on the worker pool and
// fuses them.
func (e *Engine) SearchAssisted(ctx context.Context, query string, limit int) ([]corpus.Entry, error) {
	start := time.Now()
	res, err := e.SearchAssistedAsync(ctx, query, limit).Wait(ctx)
	err = contextError(err)
	e.observe(ModeAssisted, query, start, len(res), err, false)
	return res, err
}

// SearchAssistedAsync schedules an assisted search and returns immediately.
// Scheduling failures are reported through the returned Future.
func (e *Engine) SearchAssistedAsync(ctx context.Context, query string, limit int) *Future {
	return e.submit(ctx, func(ctx context.Context) ([]corpus.Entry, error) {
		if limit <= 0 {
			return []corpus.Entry{}, nil
		}
		r := e.reform.Reformulate(ctx, query, true)
		return e.fuse(ctx, limit, r.SuggestedQuery(), r.TransliteratedQuery())
	})
}

// SearchCombined fuses two caller-built queries, q1 seeding the result.
func (e *Engine) SearchCombined(ctx context.Context, q1, q2 string, limit int) ([]corpus.Entry, error) {
	start := time.Now()
	res, err := e.submit(ctx, func(ctx context.Context) ([]corpus.Entry, error) {
		if limit <= 0 {
			return []corpus.Entry{}, nil
		}
		return e.fuse(ctx, limit, q1, q2)
	}).Wait(ctx)
	err = contextError(err)
	e.observe(ModeCombined, q1+" | "+q2, start, len(res), err, false)
	return res, err
}

// Explain returns the fused scores of an assisted search alongside the
// query variants that produced them. It runs on the caller's goroutine.
func (e *Engine) Explain(ctx context.Context, query string, limit int) (Reformulation, []ScoredEntry, error) {
	r := e.reform.Reformulate(ctx, query, true)
	sets, err := runPasses(ctx, e.matcher, e.holder.Load(),
		[]string{r.SuggestedQuery(), r.TransliteratedQuery()})
	if err != nil {
		return r, nil, contextError(err)
	}
	return r, e.fusion.FuseScored(sets, limit), nil
}

// Search dispatches on mode. A failed assisted search is logged and
// answered by the default path so callers always get a result list.
func (e *Engine) Search(ctx context.Context, mode Mode, query string, limit int) ([]corpus.Entry, error) {
	if mode != ModeAssisted {
		return e.SearchDefault(ctx, query, limit)
	}

	res, err := e.SearchAssisted(ctx, query, limit)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, contextError(ctx.Err())
	}

	slog.Warn("assisted_search_fallback",
		slog.String("query", query),
		slog.String("error", err.Error()))
	e.metrics.RecordFallback()

	start := time.Now()
	res, err = e.searchDefault(ctx, query, limit)
	e.observe(ModeAssisted, query, start, len(res), err, true)
	return res, err
}

// Close stops the worker pool if the engine created it.
func (e *Engine) Close() error {
	if e.ownsPool {
		e.pool.Close()
	}
	return nil
}

func (e *Engine) submit(ctx context.Context, task Task) *Future {
	f, err := e.pool.Submit(ctx, task)
	if err != nil {
		f = newFuture()
		f.complete(nil, err)
	}
	return f
}

func (e *Engine) fuse(ctx context.Context, limit int, queries ...string) ([]corpus.Entry, error) {
	sets, err := runPasses(ctx, e.matcher, e.holder.Load(), queries)
	if err != nil {
		return nil, err
	}
	return e.fusion.Fuse(sets, limit), nil
}

func (e *Engine) observe(mode Mode, query string, start time.Time, results int, err error, fallback bool) {
	latency := time.Since(start)
	e.metrics.RecordSearch(mode, latency, results, err)

	if err != nil {
		return
	}
	slog.Debug("search_complete",
		slog.String("mode", string(mode)),
		slog.String("query", query),
		slog.Int("results", results),
		slog.Bool("fallback", fallback),
		slog.Duration("duration", latency))

	if e.recorder != nil {
		e.recorder.Record(telemetry.QueryEvent{
			Query:       query,
			Mode:        telemetry.Mode(mode),
			ResultCount: results,
			Latency:     latency,
			Fallback:    fallback,
			Timestamp:   time.Now(),
		})
	}
}

// contextError tags an expired deadline with the timeout code and leaves
// other errors untouched.
func contextError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && apperrors.GetCode(err) == "" {
		return apperrors.New(apperrors.ErrCodeSearchTimeout, "search timed out", err).
			WithSuggestion("Retry with a longer deadline or a smaller corpus")
	}
	return err
}
