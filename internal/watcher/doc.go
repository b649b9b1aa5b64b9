// Package watcher reports changes to corpus snapshot files so the server can
// rebuild its corpus without a restart.
//
// A SnapshotWatcher watches the directories holding the configured snapshot
// files with fsnotify and falls back to polling when fsnotify is unavailable
// (network mounts, some container volumes). Events for other files in those
// directories are ignored. Bursts of events, such as an editor writing a
// temp file and renaming it over the snapshot, are debounced into one batch.
//
// Usage:
//
//	w, err := watcher.NewSnapshotWatcher(paths, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx)
//	watcher.Reload(ctx, w.Events(), func(ctx context.Context) error {
//	    c, err := corpus.Load(ctx, prefix, sources)
//	    if err != nil {
//	        return err
//	    }
//	    holder.Store(c)
//	    return nil
//	})
package watcher
