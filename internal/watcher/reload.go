package watcher

import (
	"context"
	"log/slog"
	"time"
)

// Reload calls load once per batch until events is closed or ctx ends.
// A failed load is logged and the previous corpus stays live.
func Reload(ctx context.Context, events <-chan []FileEvent, load func(ctx context.Context) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			paths := make([]string, len(batch))
			for i, e := range batch {
				paths[i] = e.Path
			}

			start := time.Now()
			if err := load(ctx); err != nil {
				slog.Warn("snapshot_reload_failed",
					slog.Any("files", paths),
					slog.String("error", err.Error()))
				continue
			}
			slog.Info("snapshot_reloaded",
				slog.Any("files", paths),
				slog.Duration("duration", time.Since(start)))
		}
	}
}
