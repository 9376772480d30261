// Package watcher detects content changes in a path index by polling.
package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/filesurf/internal/logging"
	"github.com/fruitsalade/filesurf/internal/metrics"
	"github.com/fruitsalade/filesurf/internal/pathindex"
)

// DefaultInterval is the poll period used when none is given.
const DefaultInterval = 500 * time.Millisecond

// ErrStarted is returned by Start on a watcher that is already running.
var ErrStarted = errors.New("watcher already started")

// Source supplies the index value to scan.
type Source interface {
	Snapshot() *pathindex.Index
}

// Handler is called with the path whose content changed.
type Handler func(path string)

type seen struct {
	id      uint64
	content string
}

// Watcher compares file contents against the values seen on earlier scans.
// Each scan reports at most one changed path; remaining changes surface on
// later scans.
type Watcher struct {
	source   Source
	interval time.Duration
	onChange Handler

	mu       sync.Mutex
	baseline map[string]seen
	started  bool

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	log      *zap.Logger
}

// New creates a watcher over source.
func New(source Source, interval time.Duration, onChange Handler) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		source:   source,
		interval: interval,
		onChange: onChange,
		baseline: make(map[string]seen),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		log:      logging.Named("watcher"),
	}
}

// Start records the current contents as the baseline and begins polling.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrStarted
	}
	w.started = true
	w.reset(w.source.Snapshot())
	w.mu.Unlock()

	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Wake requests an immediate scan without waiting for the next tick.
func (w *Watcher) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) watchLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Tick()
		case <-w.wake:
			w.Tick()
		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) reset(idx *pathindex.Index) {
	clear(w.baseline)
	for _, e := range idx.Files() {
		w.baseline[e.Path] = seen{id: e.ID, content: e.Content}
	}
}

// Tick performs one scan and returns the changed path, if any. The handler
// is invoked before Tick returns.
func (w *Watcher) Tick() (string, bool) {
	idx := w.source.Snapshot()

	w.mu.Lock()
	for path, s := range w.baseline {
		e, ok := idx.Lookup(path)
		if !ok || !e.IsFile() || e.ID != s.id {
			delete(w.baseline, path)
		}
	}

	var changed string
	idx.Range(func(e *pathindex.Entry) bool {
		if !e.IsFile() {
			return true
		}
		prev, known := w.baseline[e.Path]
		if !known {
			w.baseline[e.Path] = seen{id: e.ID, content: e.Content}
			return true
		}
		if prev.content != e.Content {
			w.baseline[e.Path] = seen{id: e.ID, content: e.Content}
			changed = e.Path
			return false
		}
		return true
	})
	w.mu.Unlock()

	metrics.RecordWatcherTick(changed != "")
	if changed == "" {
		return "", false
	}
	w.log.Debug("content change detected", zap.String("path", changed))
	if w.onChange != nil {
		w.onChange(changed)
	}
	return changed, true
}
