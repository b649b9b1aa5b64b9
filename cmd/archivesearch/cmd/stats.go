package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinnku-archive/archivesearch/internal/config"
	"github.com/shinnku-archive/archivesearch/internal/corpus"
	"github.com/shinnku-archive/archivesearch/internal/output"
	"github.com/shinnku-archive/archivesearch/internal/telemetry"
)

type statsOptions struct {
	days       int
	jsonOutput bool
}

// statsResult is the JSON form of the stats command.
type statsResult struct {
	Corpus  corpus.Stats        `json:"corpus"`
	Sources []string            `json:"sources"`
	Queries *telemetry.Snapshot `json:"queries,omitempty"`
}

func newStatsCmd(global *globalOptions) *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and query statistics",
		Long: `Load the configured snapshots and report entry counts and sizes.
Query statistics recorded by 'archivesearch serve' are included when the
telemetry database exists.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			return runStats(cmd.Context(), cmd, cfg, opts)
		},
	}

	cmd.Flags().IntVar(&opts.days, "days", 7, "Days of query history to include")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts statsOptions) error {
	c, err := loadCorpus(ctx, cfg)
	if err != nil {
		return err
	}
	res := statsResult{Corpus: c.Stats(), Sources: sourceNames(cfg)}

	if cfg.Telemetry.Enabled {
		if _, err := os.Stat(cfg.TelemetryDBPath()); err == nil {
			store, err := telemetry.OpenSQLiteStore(cfg.TelemetryDBPath())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if res.Queries, err = telemetry.History(store, opts.days, time.Now()); err != nil {
				return err
			}
		}
	}

	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		return out.JSON(res)
	}
	out.CorpusStats(res.Corpus, res.Sources)
	if res.Queries != nil {
		out.Newline()
		out.QueryStats(res.Queries)
	}
	return nil
}
