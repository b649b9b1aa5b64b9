package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
	"github.com/shinnku-archive/archivesearch/internal/search"
	"github.com/shinnku-archive/archivesearch/internal/telemetry"
	"github.com/shinnku-archive/archivesearch/pkg/version"
)

// Result limits for tool calls.
const (
	DefaultToolLimit = 20
	MaxToolLimit     = 200
)

// Engine is the part of search.Engine the MCP tools use.
type Engine interface {
	Search(ctx context.Context, mode search.Mode, query string, limit int) ([]corpus.Entry, error)
	Explain(ctx context.Context, query string, limit int) (search.Reformulation, []search.ScoredEntry, error)
	Corpus() *corpus.Corpus
}

// QueryStats reports collected query telemetry. telemetry.QueryMetrics
// implements it.
type QueryStats interface {
	Snapshot() *telemetry.Snapshot
}

// Server bridges MCP clients with the search engine.
type Server struct {
	mcp     *mcp.Server
	engine  Engine
	stats   QueryStats
	sources []string
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithSources names the loaded snapshots for corpus_status.
func WithSources(names []string) Option {
	return func(s *Server) {
		s.sources = names
	}
}

// WithQueryStats adds query telemetry to corpus_status.
func WithQueryStats(stats QueryStats) Option {
	return func(s *Server) {
		s.stats = stats
	}
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Fuzzy search over the archive's file names. Tolerates typos and mixed Chinese/Japanese scripts. Results are ranked best first.",
	},
	{
		Name:        "search_assisted",
		Description: "Search with a looked-up canonical name added to the query. Use when the default search misses a title known by another name. Falls back to the default search if the lookup fails.",
	},
	{
		Name:        "corpus_status",
		Description: "Report how many entries are searchable, which snapshots are loaded and query statistics.",
	},
}

// NewServer creates an MCP server with the search tools registered.
func NewServer(engine Engine, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}

	s := &Server{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "archivesearch",
		Version: version.Version,
	}, nil)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpAssistedHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name and returns its markdown rendering.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "search":
		in := SearchInput{}
		in.Query, _ = args["query"].(string)
		in.Mode, _ = args["mode"].(string)
		in.Limit = intArg(args, "limit")

		out, err := s.search(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatResults(in.Query, out.Results), nil

	case "search_assisted":
		in := AssistedInput{}
		in.Query, _ = args["query"].(string)
		in.Explain, _ = args["explain"].(bool)
		in.Limit = intArg(args, "limit")

		out, err := s.assisted(ctx, in)
		if err != nil {
			return "", err
		}
		if out.Query != nil {
			return FormatExplained(*out.Query, out.Results), nil
		}
		return FormatResults(in.Query, out.Results), nil

	case "corpus_status":
		return FormatStatus(s.status()), nil

	default:
		return "", NewMethodNotFoundError(name)
	}
}

// intArg reads a JSON number argument.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpAssistedHandler(ctx context.Context, _ *mcp.CallToolRequest, input AssistedInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.assisted(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	return nil, s.status(), nil
}

func validateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return NewInvalidParamsError("query parameter is required and must not be blank")
	}
	return nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (SearchOutput, error) {
	if err := validateQuery(in.Query); err != nil {
		return SearchOutput{}, err
	}
	mode, err := search.ParseMode(in.Mode)
	if err != nil {
		return SearchOutput{}, MapError(err)
	}
	limit := clampLimit(in.Limit, DefaultToolLimit, 1, MaxToolLimit)

	requestID := generateRequestID()
	start := time.Now()
	entries, err := s.engine.Search(ctx, mode, in.Query, limit)
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.String("mode", string(mode)),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return SearchOutput{}, MapError(err)
	}

	s.logger.Info("mcp_search_complete",
		slog.String("request_id", requestID),
		slog.String("mode", string(mode)),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(entries)))
	return SearchOutput{Results: toResults(entries)}, nil
}

func (s *Server) assisted(ctx context.Context, in AssistedInput) (SearchOutput, error) {
	if !in.Explain {
		return s.search(ctx, SearchInput{Query: in.Query, Limit: in.Limit, Mode: string(search.ModeAssisted)})
	}
	if err := validateQuery(in.Query); err != nil {
		return SearchOutput{}, err
	}

	limit := clampLimit(in.Limit, DefaultToolLimit, 1, MaxToolLimit)
	r, scored, err := s.engine.Explain(ctx, in.Query, limit)
	if err != nil {
		return SearchOutput{}, MapError(err)
	}
	return SearchOutput{Query: &r, Results: toScoredResults(scored)}, nil
}

func (s *Server) status() StatusOutput {
	stats := s.engine.Corpus().Stats()
	out := StatusOutput{
		Entries:      stats.Entries,
		DuplicateIDs: stats.DuplicateIDs,
		TotalBytes:   stats.TotalBytes,
		BuiltAt:      stats.BuiltAt,
		Sources:      s.sources,
	}
	if s.stats != nil {
		out.Queries = s.stats.Snapshot()
	}
	return out
}

// Serve runs the server on the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
