package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Path: "/snap/a.json", Operation: OpModify, Timestamp: time.Now()})

	// Then: it is emitted after the window
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, "/snap/a.json", batch[0].Path)
		assert.Equal(t, OpModify, batch[0].Operation)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_BurstBecomesOneBatch(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	for range 5 {
		d.Add(FileEvent{Path: "/snap/a.json", Operation: OpModify})
		d.Add(FileEvent{Path: "/snap/b.json", Operation: OpModify})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 2)
		assert.Equal(t, "/snap/a.json", batch[0].Path)
		assert.Equal(t, "/snap/b.json", batch[1].Path)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced batch")
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		prev     Operation
		next     Operation
		want     Operation
		wantKeep bool
	}{
		{"create then modify", OpCreate, OpModify, OpCreate, true},
		{"create then delete", OpCreate, OpDelete, 0, false},
		{"delete then create", OpDelete, OpCreate, OpModify, true},
		{"modify then delete", OpModify, OpDelete, OpDelete, true},
		{"rename then create", OpRename, OpCreate, OpCreate, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := merge(FileEvent{Path: "p", Operation: tt.prev}, FileEvent{Path: "p", Operation: tt.next})

			assert.Equal(t, tt.wantKeep, keep)
			if keep {
				assert.Equal(t, tt.want, got.Operation)
			}
		})
	}
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "x"})

	_, ok := <-d.Output()
	assert.False(t, ok)
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{}.WithDefaults()

	assert.Equal(t, DefaultOptions(), got)
}

func TestPollingWatcher_DetectsChanges(t *testing.T) {
	// Given: a polled snapshot file
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	p := NewPollingWatcher([]string{path}, time.Hour)
	defer p.Stop()

	// When: the file grows, then disappears
	require.NoError(t, os.WriteFile(path, []byte(`[{"file_path":"a"}]`), 0o644))
	p.poll()
	require.NoError(t, os.Remove(path))
	p.poll()

	// Then: a modify and a delete are reported
	first := <-p.Events()
	second := <-p.Events()
	assert.Equal(t, OpModify, first.Operation)
	assert.Equal(t, OpDelete, second.Operation)
	assert.Equal(t, path, first.Path)
}

func TestPollingWatcher_DetectsCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.json")
	p := NewPollingWatcher([]string{path}, time.Hour)
	defer p.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	p.poll()

	assert.Equal(t, OpCreate, (<-p.Events()).Operation)
}

func TestNewSnapshotWatcher_RequiresPaths(t *testing.T) {
	_, err := NewSnapshotWatcher(nil, DefaultOptions())

	assert.Error(t, err)
}

func startWatcher(t *testing.T, paths []string, opts Options) *SnapshotWatcher {
	t.Helper()
	w, err := NewSnapshotWatcher(paths, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	go func() { _ = w.Start(ctx) }()
	return w
}

func TestSnapshotWatcher_ReportsSnapshotWrites(t *testing.T) {
	// Given: a watched snapshot next to an unrelated file
	dir := t.TempDir()
	snap := filepath.Join(dir, "bucket.json")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(snap, []byte("[]"), 0o644))

	w := startWatcher(t, []string{snap}, Options{DebounceWindow: 20 * time.Millisecond})
	require.Equal(t, "fsnotify", w.Mode())
	time.Sleep(50 * time.Millisecond)

	// When: both files are written
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(snap, []byte(`[{"file_path":"a"}]`), 0o644))

	// Then: only the snapshot is reported
	select {
	case batch := <-w.Events():
		require.NotEmpty(t, batch)
		for _, e := range batch {
			assert.Equal(t, snap, e.Path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for snapshot event")
	}
}

func TestSnapshotWatcher_PollingMode(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "bucket.json")
	require.NoError(t, os.WriteFile(snap, []byte("[]"), 0o644))

	w := startWatcher(t, []string{snap}, Options{
		ForcePolling:   true,
		PollInterval:   10 * time.Millisecond,
		DebounceWindow: 10 * time.Millisecond,
	})
	require.Equal(t, "polling", w.Mode())

	require.NoError(t, os.WriteFile(snap, []byte(`[{"file_path":"longer"}]`), 0o644))

	select {
	case batch := <-w.Events():
		require.Len(t, batch, 1)
		assert.Equal(t, snap, batch[0].Path)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for polled event")
	}
}

func TestSnapshotWatcher_StopClosesChannels(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "bucket.json")
	w, err := NewSnapshotWatcher([]string{snap}, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestReload_CallsLoadPerBatch(t *testing.T) {
	// Given: two batches, the first failing to load
	events := make(chan []FileEvent, 2)
	events <- []FileEvent{{Path: "a"}}
	events <- []FileEvent{{Path: "b"}}
	close(events)

	var calls atomic.Int32
	load := func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("corrupt snapshot")
		}
		return nil
	}

	// When: reloading
	Reload(context.Background(), events, load)

	// Then: the failure did not stop later reloads
	assert.Equal(t, int32(2), calls.Load())
}

func TestReload_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		Reload(ctx, make(chan []FileEvent), func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reload did not stop")
	}
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}
