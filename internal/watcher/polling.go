package watcher

import (
	"context"
	"os"
	"sync"
	"time"
)

// PollingWatcher detects snapshot changes by comparing file size and
// modification time on a fixed interval. Used when fsnotify is unavailable.
type PollingWatcher struct {
	interval time.Duration
	paths    []string
	state    map[string]fileState
	events   chan FileEvent
	stopCh   chan struct{}
	mu       sync.Mutex
	stopped  bool
}

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher over paths.
func NewPollingWatcher(paths []string, interval time.Duration) *PollingWatcher {
	p := &PollingWatcher{
		interval: interval,
		paths:    paths,
		state:    make(map[string]fileState, len(paths)),
		events:   make(chan FileEvent, 64),
		stopCh:   make(chan struct{}),
	}
	for _, path := range paths {
		p.state[path] = stat(path)
	}
	return p
}

func stat(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

// Start polls until ctx is done or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll compares every path with its last known state.
func (p *PollingWatcher) poll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	now := time.Now()
	for _, path := range p.paths {
		prev := p.state[path]
		cur := stat(path)
		p.state[path] = cur

		var op Operation
		switch {
		case !prev.exists && cur.exists:
			op = OpCreate
		case prev.exists && !cur.exists:
			op = OpDelete
		case cur.exists && (cur.size != prev.size || !cur.modTime.Equal(prev.modTime)):
			op = OpModify
		default:
			continue
		}

		select {
		case p.events <- FileEvent{Path: path, Operation: op, Timestamp: now}:
		default:
		}
	}
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Stop stops the polling watcher.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	return nil
}
