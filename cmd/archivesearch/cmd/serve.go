package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinnku-archive/archivesearch/internal/config"
	"github.com/shinnku-archive/archivesearch/internal/httpapi"
	"github.com/shinnku-archive/archivesearch/internal/lockfile"
	"github.com/shinnku-archive/archivesearch/internal/logging"
	"github.com/shinnku-archive/archivesearch/internal/mcp"
	"github.com/shinnku-archive/archivesearch/internal/watcher"
	"github.com/shinnku-archive/archivesearch/pkg/version"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	transport      string
	host           string
	port           int
	requestTimeout time.Duration
	noWatch        bool
}

func newServeCmd(global *globalOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search over HTTP or MCP stdio",
		Long: `Load the configured snapshots and serve search until interrupted.

With --transport http (default) the REST API listens on host:port:
  GET /search?q=&n=&mode=     GET /search/assisted?q=&n=&explain=
  GET /conbinesearch?q1=&q2=  GET /findname?name=
  GET /health                 GET /metrics

With --transport stdio the MCP tools search, search_assisted and
corpus_status are served over stdin/stdout.`,
		Example: `  archivesearch serve
  archivesearch serve --port 8080
  archivesearch serve --transport stdio`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			if err := opts.apply(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.transport, "transport", "t", "", "Transport: http or stdio (default from config)")
	cmd.Flags().StringVar(&opts.host, "host", "", "HTTP listen host (default from config)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "HTTP listen port (default from config)")
	cmd.Flags().DurationVar(&opts.requestTimeout, "request-timeout", 30*time.Second, "Per-request search deadline, 0 for none")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not reload when snapshots change")

	return cmd
}

// apply overrides cfg with the flags that were set.
func (o serveOptions) apply(cfg *config.Config) error {
	if o.transport != "" {
		cfg.Server.Transport = strings.ToLower(o.transport)
	}
	if o.host != "" {
		cfg.Server.Host = o.host
	}
	if o.port != 0 {
		cfg.Server.Port = o.port
	}
	if o.noWatch {
		cfg.Corpus.Watch = false
	}
	return cfg.Validate()
}

func runServe(ctx context.Context, cfg *config.Config, opts serveOptions) error {
	stdio := cfg.Server.Transport == "stdio"

	logCfg := logging.DefaultConfig(cfg.DataDir())
	logCfg.Level = cfg.Server.LogLevel
	if stdio {
		logCfg = logging.StdioConfig(cfg.DataDir(), cfg.Server.LogLevel)
	}
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	lock, err := lockfile.Acquire(cfg.DataDir())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	slog.Info("serve_starting",
		slog.String("version", version.Version),
		slog.String("transport", cfg.Server.Transport),
		slog.String("data_dir", cfg.DataDir()))

	a, err := openApp(ctx, cfg, appOptions{telemetry: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("shutdown_incomplete", slog.String("error", err.Error()))
		}
	}()

	if cfg.Corpus.Watch {
		stopWatch, err := startWatcher(ctx, a)
		if err != nil {
			slog.Warn("snapshot_watch_disabled", slog.String("error", err.Error()))
		} else {
			defer stopWatch()
		}
	}

	if stdio {
		return serveMCP(ctx, a)
	}
	return serveHTTP(ctx, a, opts.requestTimeout)
}

// startWatcher reloads the corpus whenever a snapshot file changes.
func startWatcher(ctx context.Context, a *app) (func(), error) {
	w, err := watcher.NewSnapshotWatcher(snapshotPaths(a.cfg), watcher.Options{
		DebounceWindow: a.cfg.Corpus.WatchDebounce.Std(),
	})
	if err != nil {
		return nil, err
	}

	go func() {
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("snapshot_watcher_stopped", slog.String("error", err.Error()))
		}
	}()
	go func() {
		for err := range w.Errors() {
			slog.Warn("snapshot_watcher_error", slog.String("error", err.Error()))
		}
	}()
	go watcher.Reload(ctx, w.Events(), a.reload)

	slog.Info("snapshot_watch_started",
		slog.String("mode", w.Mode()),
		slog.Int("files", len(a.cfg.Corpus.Sources)))
	return func() { _ = w.Stop() }, nil
}

func serveHTTP(ctx context.Context, a *app, requestTimeout time.Duration) error {
	var names httpapi.NameLookup
	if a.suggest != nil {
		names = a.suggest
	}

	srv, err := httpapi.NewServer(a.engine, names, httpapi.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		DefaultLimit:   a.cfg.Search.DefaultLimit,
		MaxLimit:       a.cfg.Search.MaxLimit,
		RequestTimeout: requestTimeout,
		Sources:        sourceNames(a.cfg),
		Version:        version.Version,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

func serveMCP(ctx context.Context, a *app) error {
	opts := []mcp.Option{mcp.WithSources(sourceNames(a.cfg))}
	if a.telemetry != nil {
		opts = append(opts, mcp.WithQueryStats(a.telemetry))
	}

	srv, err := mcp.NewServer(a.engine, opts...)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, "stdio")
}
