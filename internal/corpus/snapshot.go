package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
)

// Source names one JSON snapshot and an optional path filter.
type Source struct {
	Name          string
	Path          string
	IncludePrefix string
}

// LoadSnapshot reads a JSON array of FileRecord from path.
func LoadSnapshot(path string) ([]FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.New(apperrors.ErrCodeSnapshotNotFound,
				fmt.Sprintf("snapshot not found: %s", path), err).
				WithSuggestion("check corpus.sources in archivesearch.yaml")
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeSnapshotNotFound, err)
	}
	defer func() { _ = f.Close() }()

	var records []FileRecord
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSnapshotCorrupt,
			fmt.Sprintf("invalid snapshot %s: %v", path, err), err).
			WithDetail("path", path)
	}
	return records, nil
}

// LoadSources loads every source concurrently and returns one batch per
// source, in source order, each filtered by its IncludePrefix.
func LoadSources(ctx context.Context, sources []Source) ([][]FileRecord, error) {
	batches := make([][]FileRecord, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := LoadSnapshot(src.Path)
			if err != nil {
				return err
			}
			batches[i] = FilterPrefix(records, src.IncludePrefix)

			slog.Debug("snapshot_loaded",
				slog.String("source", src.Name),
				slog.String("path", src.Path),
				slog.Int("records", len(records)),
				slog.Int("kept", len(batches[i])))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// Load reads sources and builds a corpus with the given id prefix.
func Load(ctx context.Context, prefix string, sources []Source) (*Corpus, error) {
	batches, err := LoadSources(ctx, sources)
	if err != nil {
		return nil, err
	}
	return Build(prefix, batches...), nil
}
