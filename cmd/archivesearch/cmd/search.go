package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinnku-archive/archivesearch/internal/config"
	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
	"github.com/shinnku-archive/archivesearch/internal/logging"
	"github.com/shinnku-archive/archivesearch/internal/output"
	"github.com/shinnku-archive/archivesearch/internal/search"
)

type searchOptions struct {
	limit    int
	assisted bool
	explain  bool
	format   string
	timeout  time.Duration
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the configured snapshots once",
		Long: `Rank entries of the configured snapshots against a query.

The default path matches the query together with its script-converted form.
--assisted also looks up a canonical name and fuses both rankings.
--explain implies --assisted and prints the queries and fused scores.`,
		Example: `  archivesearch search 浮士德
  archivesearch search "summer pockets" -n 5
  archivesearch search 魔法使いの夜 --assisted --format json
  archivesearch search faust --explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd, cfg, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVarP(&opts.assisted, "assisted", "a", false, "Add a suggested canonical name to the query")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show reformulated queries and fused scores")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Search deadline, 0 for none")

	return cmd
}

// explainResult is the JSON form of --explain.
type explainResult struct {
	Query   search.Reformulation `json:"query"`
	Results []search.ScoredEntry `json:"results"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, query string, opts searchOptions) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return apperrors.ValidationError(err.Error(), err)
	}
	limit := opts.limit
	if limit == 0 {
		limit = cfg.Search.DefaultLimit
	}
	if limit < 0 {
		return apperrors.New(apperrors.ErrCodeInvalidLimit, "limit must not be negative", nil)
	}

	logCfg := logging.DefaultConfig(cfg.DataDir())
	logCfg.Level = cfg.Server.LogLevel
	logCfg.WriteToStderr = false
	if cleanup, err := logging.SetupDefault(logCfg); err == nil {
		defer cleanup()
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := output.New(cmd.OutOrStdout())
	slog.Info("cli_search_started", slog.String("query", query), slog.Int("limit", limit))

	if opts.explain {
		r, scored, err := a.engine.Explain(ctx, query, limit)
		if err != nil {
			return err
		}
		if format == output.FormatJSON {
			return out.JSON(explainResult{Query: r, Results: scored})
		}
		out.Explained(r, scored)
		return nil
	}

	mode := search.ModeDefault
	if opts.assisted {
		mode = search.ModeAssisted
	}
	entries, err := a.engine.Search(ctx, mode, query, limit)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		return out.JSON(entries)
	}
	out.Results(query, entries)
	return nil
}
