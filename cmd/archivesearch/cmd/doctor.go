package cmd

import (
	"github.com/spf13/cobra"

	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
	"github.com/shinnku-archive/archivesearch/internal/output"
	"github.com/shinnku-archive/archivesearch/internal/preflight"
)

func newDoctorCmd(global *globalOptions) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check snapshots, data directory and suggestion service",
		Long: `Run the checks 'archivesearch serve' depends on and report each result.

Failed snapshot or data directory checks exit non-zero. An unreachable
suggestion service only warns, since assisted search falls back.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}

			target := preflight.Target{DataDir: cfg.DataDir()}
			for _, s := range cfg.Corpus.Sources {
				target.Snapshots = append(target.Snapshots, preflight.Snapshot{Name: s.Name, Path: s.Path})
			}
			client, err := newSuggestClient(cfg)
			if err != nil {
				return err
			}
			if client != nil {
				target.Suggest = client
			}

			checker := preflight.New(
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose),
				preflight.WithProbeTimeout(cfg.Suggest.Timeout.Std()))
			results := checker.RunAll(cmd.Context(), target)

			if jsonOutput {
				if err := output.New(cmd.OutOrStdout()).JSON(results); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return apperrors.New(apperrors.ErrCodeInvalidInput, "preflight checks failed", nil).
					WithSuggestion("Fix the FAIL items above and run 'archivesearch doctor' again")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
