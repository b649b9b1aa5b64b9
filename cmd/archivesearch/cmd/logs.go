package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shinnku-archive/archivesearch/internal/logging"
	"github.com/shinnku-archive/archivesearch/internal/output"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	file    string
}

func newLogsCmd(global *globalOptions) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View server logs",
		Long: `Show the JSON server log written by 'archivesearch serve' in a readable form.

By default the last 50 lines of <data_dir>/logs/server.log are shown.
Use -f to keep printing new entries as they are written.`,
		Example: `  archivesearch logs
  archivesearch logs -n 200 --level warn
  archivesearch logs -f --filter assisted_search`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.file
			if path == "" {
				cfg, err := loadConfig(global)
				if err != nil {
					return err
				}
				path = logging.LogPath(cfg.DataDir())
			}
			return runLogs(cmd.Context(), cmd, path, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show lines matching this regular expression")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file (default <data_dir>/logs/server.log)")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, path string, opts logsOptions) error {
	if opts.level != "" && !logging.ValidLevel(opts.level) {
		return fmt.Errorf("unknown level %q (supported: debug, info, warn, error)", opts.level)
	}
	var pattern *regexp.Regexp
	if opts.filter != "" {
		var err error
		if pattern, err = regexp.Compile(opts.filter); err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	w := cmd.OutOrStdout()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		Color:   !opts.noColor && output.ShouldColor(w),
	})

	if _, err := os.Stat(path); os.IsNotExist(err) {
		output.New(w).Warning("No log file yet")
		output.New(w).Statusf("", "Expected at %s", path)
		return nil
	}

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(w, entries)
	if !opts.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- viewer.Follow(ctx, path, ch) }()

	for {
		select {
		case e := <-ch:
			_, _ = fmt.Fprintln(w, viewer.Format(e))
		case err := <-errCh:
			return err
		}
	}
}

