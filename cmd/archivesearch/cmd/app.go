package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shinnku-archive/archivesearch/internal/config"
	"github.com/shinnku-archive/archivesearch/internal/corpus"
	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
	"github.com/shinnku-archive/archivesearch/internal/search"
	"github.com/shinnku-archive/archivesearch/internal/suggest"
	"github.com/shinnku-archive/archivesearch/internal/telemetry"
)

// app is the wired search stack shared by serve and search.
type app struct {
	cfg       *config.Config
	holder    *corpus.Holder
	engine    *search.Engine
	pool      *search.Pool
	suggest   *suggest.Client
	telemetry *telemetry.QueryMetrics
	metrics   *search.Metrics
}

type appOptions struct {
	telemetry bool
}

func corpusSources(cfg *config.Config) []corpus.Source {
	out := make([]corpus.Source, len(cfg.Corpus.Sources))
	for i, s := range cfg.Corpus.Sources {
		out[i] = corpus.Source{Name: s.Name, Path: s.Path, IncludePrefix: s.IncludePrefix}
	}
	return out
}

func sourceNames(cfg *config.Config) []string {
	names := make([]string, len(cfg.Corpus.Sources))
	for i, s := range cfg.Corpus.Sources {
		names[i] = s.Name
		if names[i] == "" {
			names[i] = s.Path
		}
	}
	return names
}

func snapshotPaths(cfg *config.Config) []string {
	paths := make([]string, len(cfg.Corpus.Sources))
	for i, s := range cfg.Corpus.Sources {
		paths[i] = s.Path
	}
	return paths
}

// loadCorpus reads every configured snapshot.
func loadCorpus(ctx context.Context, cfg *config.Config) (*corpus.Corpus, error) {
	if len(cfg.Corpus.Sources) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeCorpusEmpty, "no corpus sources configured", nil).
			WithSuggestion("Add corpus.sources to archivesearch.yaml or set ARCHIVESEARCH_SNAPSHOTS")
	}
	return corpus.Load(ctx, cfg.Corpus.TrimPrefix, corpusSources(cfg))
}

func newSuggestClient(cfg *config.Config) (*suggest.Client, error) {
	if !cfg.Suggest.Enabled {
		return nil, nil
	}
	return suggest.New(cfg.Suggest.Endpoint,
		suggest.WithTimeout(cfg.Suggest.Timeout.Std()),
		suggest.WithCacheSize(cfg.Suggest.CacheSize),
		suggest.WithCircuitBreaker(cfg.Suggest.MaxFailures, cfg.Suggest.ResetTimeout.Std()),
		suggest.WithRetries(cfg.Suggest.MaxRetries))
}

func openTelemetry(cfg *config.Config) *telemetry.QueryMetrics {
	store, err := telemetry.OpenSQLiteStore(cfg.TelemetryDBPath())
	if err != nil {
		slog.Warn("telemetry_store_unavailable",
			slog.String("path", cfg.TelemetryDBPath()),
			slog.String("error", err.Error()))
		return telemetry.NewQueryMetrics(nil, telemetry.DefaultConfig())
	}
	return telemetry.NewQueryMetrics(store, telemetry.DefaultConfig())
}

// openApp loads the corpus and builds the engine and its collaborators.
func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	c, err := loadCorpus(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		holder:  corpus.NewHolder(c),
		metrics: search.NewMetrics(),
	}
	a.metrics.SetCorpusEntries(c.Len())

	a.suggest, err = newSuggestClient(cfg)
	if err != nil {
		return nil, err
	}

	a.pool = search.NewPool(cfg.Search.Workers, search.WithPoolMetrics(a.metrics))
	engineOpts := []search.EngineOption{
		search.WithThreshold(cfg.Search.Threshold),
		search.WithPool(a.pool),
		search.WithMetrics(a.metrics),
	}
	if a.suggest != nil {
		engineOpts = append(engineOpts, search.WithSuggester(a.suggest))
	}

	if opts.telemetry && cfg.Telemetry.Enabled {
		a.telemetry = openTelemetry(cfg)
		engineOpts = append(engineOpts, search.WithRecorder(a.telemetry))
	}

	a.engine, err = search.NewEngine(a.holder, engineOpts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	stats := c.Stats()
	slog.Info("corpus_loaded",
		slog.Int("entries", stats.Entries),
		slog.Int("duplicate_ids", stats.DuplicateIDs),
		slog.Any("sources", sourceNames(cfg)))
	return a, nil
}

// reload rebuilds the corpus from the snapshots and swaps it in.
func (a *app) reload(ctx context.Context) error {
	c, err := loadCorpus(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.holder.Store(c)
	a.metrics.SetCorpusEntries(c.Len())
	return nil
}

// Close stops the engine and flushes telemetry.
func (a *app) Close() error {
	var errs []error
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Close())
	}
	return errors.Join(errs...)
}
