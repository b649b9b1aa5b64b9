// Package httpapi serves the search engine over HTTP.
//
// Routes mirror the legacy backend so existing frontends keep working:
//
//	GET /search?q=&n=&mode=          ranked entries (default path unless mode=assisted)
//	GET /search/assisted?q=&n=       assisted path with fallback; explain=1 adds scores
//	GET /conbinesearch?q1=&q2=&n=    two caller-built queries fused (alias /combinesearch)
//	GET /findname?name=              name-suggestion lookup, {"ans": [...]}
//	GET /health                      liveness and corpus status
//	GET /metrics                     Prometheus scrape
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
	"github.com/shinnku-archive/archivesearch/internal/search"
	"github.com/shinnku-archive/archivesearch/internal/suggest"
)

// Engine is the part of search.Engine the API uses.
type Engine interface {
	Search(ctx context.Context, mode search.Mode, query string, limit int) ([]corpus.Entry, error)
	SearchCombined(ctx context.Context, q1, q2 string, limit int) ([]corpus.Entry, error)
	Explain(ctx context.Context, query string, limit int) (search.Reformulation, []search.ScoredEntry, error)
	Corpus() *corpus.Corpus
}

// NameLookup resolves names for /findname. suggest.Client implements it.
type NameLookup interface {
	Lookup(ctx context.Context, query string) ([]string, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	DefaultLimit int
	MaxLimit     int
	// RequestTimeout bounds each search. Zero means no deadline.
	RequestTimeout time.Duration
	// Sources names the loaded snapshots for /health.
	Sources []string
	Version string
}

// DefaultConfig returns the settings of the legacy backend.
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         2999,
		DefaultLimit: search.DefaultLimit,
		MaxLimit:     1000,
	}
}

// Server provides the HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	engine  Engine
	names   NameLookup
	config  Config
	started time.Time
}

// NewServer creates the HTTP server. names may be nil, in which case
// /findname always answers an empty list.
func NewServer(engine Engine, names NameLookup, cfg Config) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	defaults := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaults.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = defaults.MaxLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewMetrics().Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			slog.Debug("http_request",
				slog.String("method", c.Request().Method),
				slog.String("uri", c.Request().RequestURI),
				slog.Int("status", c.Response().Status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
			return err
		}
	})

	s := &Server{
		echo:    e,
		engine:  engine,
		names:   names,
		config:  cfg,
		started: time.Now(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.GET("/search", s.handleSearch)
	s.echo.GET("/search/assisted", s.handleAssisted)
	s.echo.GET("/conbinesearch", s.handleCombined)
	s.echo.GET("/combinesearch", s.handleCombined)
	s.echo.GET("/findname", s.handleFindName)
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status       string    `json:"status"`
	Version      string    `json:"version,omitempty"`
	Entries      int       `json:"entries"`
	DuplicateIDs int       `json:"duplicate_ids"`
	TotalBytes   int64     `json:"total_bytes"`
	BuiltAt      time.Time `json:"built_at"`
	Sources      []string  `json:"sources,omitempty"`
	Uptime       string    `json:"uptime"`
}

// FindNameResponse is the response body for GET /findname.
type FindNameResponse struct {
	Ans []string `json:"ans"`
}

// ExplainResponse is returned by /search/assisted?explain=1.
type ExplainResponse struct {
	Query   search.Reformulation `json:"query"`
	Results []search.ScoredEntry `json:"results"`
}

func (s *Server) handleHealth(c echo.Context) error {
	stats := s.engine.Corpus().Stats()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:       "ok",
		Version:      s.config.Version,
		Entries:      stats.Entries,
		DuplicateIDs: stats.DuplicateIDs,
		TotalBytes:   stats.TotalBytes,
		BuiltAt:      stats.BuiltAt,
		Sources:      s.config.Sources,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	q, err := requireParam(c, "q")
	if err != nil {
		return err
	}
	n, err := s.limit(c)
	if err != nil {
		return err
	}
	mode, err := search.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	results, err := s.engine.Search(ctx, mode, q, n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) handleAssisted(c echo.Context) error {
	q, err := requireParam(c, "q")
	if err != nil {
		return err
	}
	n, err := s.limit(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if explain, _ := strconv.ParseBool(c.QueryParam("explain")); explain {
		r, scored, err := s.engine.Explain(ctx, q, n)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, ExplainResponse{Query: r, Results: scored})
	}

	results, err := s.engine.Search(ctx, search.ModeAssisted, q, n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) handleCombined(c echo.Context) error {
	q1, err := requireParam(c, "q1")
	if err != nil {
		return err
	}
	q2, err := requireParam(c, "q2")
	if err != nil {
		return err
	}
	n, err := s.limit(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	results, err := s.engine.SearchCombined(ctx, q1, q2, n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) handleFindName(c echo.Context) error {
	name, err := requireParam(c, "name")
	if err != nil {
		return err
	}
	if s.names == nil {
		return c.JSON(http.StatusOK, FindNameResponse{Ans: []string{}})
	}

	ans, err := s.names.Lookup(c.Request().Context(), name)
	switch {
	case errors.Is(err, suggest.ErrNoSuggestion):
		ans = nil
	case err != nil:
		return apperrors.New(apperrors.ErrCodeSuggestUnavailable, "name suggestion service failed", err)
	}
	if ans == nil {
		ans = []string{}
	}
	return c.JSON(http.StatusOK, FindNameResponse{Ans: ans})
}

// requireParam returns a query parameter that must be present. An empty
// value is allowed, matching the legacy backend.
func requireParam(c echo.Context, name string) (string, error) {
	if !c.QueryParams().Has(name) {
		return "", apperrors.New(apperrors.ErrCodeQueryEmpty,
			fmt.Sprintf("missing query parameter %q", name), nil)
	}
	return c.QueryParam(name), nil
}

// limit parses n, defaulting to DefaultLimit and capping at MaxLimit.
func (s *Server) limit(c echo.Context) (int, error) {
	raw := c.QueryParam("n")
	if raw == "" {
		return s.config.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.New(apperrors.ErrCodeInvalidLimit,
			fmt.Sprintf("invalid result count %q", raw), err).
			WithSuggestion("n must be a non-negative integer")
	}
	return min(n, s.config.MaxLimit), nil
}

func (s *Server) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	ctx := c.Request().Context()
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// errorHandler renders SearchErrors as JSON with a status derived from the
// error category.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]any{"message": he.Message})
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			slog.String("uri", c.Request().RequestURI),
			slog.String("error", err.Error()))
	}
	_ = c.JSON(status, apperrors.ToJSON(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 499
	case apperrors.GetCode(err) == apperrors.ErrCodeSearchTimeout:
		return http.StatusGatewayTimeout
	}
	switch apperrors.GetCategory(err) {
	case apperrors.CategoryValidation:
		return http.StatusBadRequest
	case apperrors.CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	slog.Info("http_server_starting", slog.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("http_server_stopping")
	return s.echo.Shutdown(ctx)
}
