// Package cmd provides the CLI commands for archivesearch.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinnku-archive/archivesearch/internal/config"
	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
	"github.com/shinnku-archive/archivesearch/internal/profiling"
	"github.com/shinnku-archive/archivesearch/pkg/version"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	debug      bool
	profile    profiling.Options
}

// NewRootCmd creates the root command for the archivesearch CLI.
func NewRootCmd() *cobra.Command {
	var (
		opts    globalOptions
		session *profiling.Session
	)

	cmd := &cobra.Command{
		Use:   "archivesearch",
		Short: "Fuzzy file-name search over archive snapshots",
		Long: `archivesearch ranks files from archive bucket snapshots against
free-text queries in any script.

Queries are matched as typed and after Chinese/Japanese script conversion.
The assisted mode also asks a name-suggestion service for a canonical title
and fuses the rankings.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !opts.profile.Enabled() {
				return nil
			}
			var err error
			session, err = profiling.Start(opts.profile)
			return err
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			err := session.Stop()
			session = nil
			return err
		},
	}
	cmd.SetVersionTemplate("archivesearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: ./archivesearch.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.profile.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.HeapPath, "profile-mem", "", "Write heap profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.TracePath, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newServeCmd(&opts))
	cmd.AddCommand(newSearchCmd(&opts))
	cmd.AddCommand(newStatsCmd(&opts))
	cmd.AddCommand(newConfigCmd(&opts))
	cmd.AddCommand(newLogsCmd(&opts))
	cmd.AddCommand(newDoctorCmd(&opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a failure to stderr.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, apperrors.FormatForCLI(err))
	}
	return err
}

// loadConfig loads configuration for the working directory.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(dir, opts.configPath)
	if err != nil {
		return nil, apperrors.ConfigError(err.Error(), err).
			WithSuggestion("Run 'archivesearch config show' to inspect the effective configuration")
	}
	if opts.debug {
		cfg.Server.LogLevel = "debug"
	}
	return cfg, nil
}
