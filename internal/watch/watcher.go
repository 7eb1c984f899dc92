// Package watch re-runs a weave whenever its input module document changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"varweave/internal/logging"
	"varweave/internal/pipeline"
)

// Runner performs one weave. *pipeline.Task implements it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// Watcher watches the directory holding the input and re-weaves the input
// once writes to it have settled for the debounce window.
//
// An in-place watch sees its own save as a change. The second run finds no
// markers left and writes nothing, so the loop ends there.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	runner      Runner
	req         pipeline.Request
	input       string
	dir         string
	pendingAt   time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	// OnRun, when set, receives every run's result on the watcher goroutine.
	OnRun func(*pipeline.Outcome, error)

	stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Runs          int
	Changed       int
	Failures      int
	LastEventTime time.Time
	LastEventType string
	LastRunTime   time.Time
	LastError     string
}

// New creates a watcher for req.Input. A non-positive debounce means 300ms.
func New(runner Runner, req pipeline.Request, debounce time.Duration) (*Watcher, error) {
	if runner == nil {
		return nil, errors.New("watch: nil runner")
	}
	input, err := filepath.Abs(req.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input: %w", err)
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:     fw,
		runner:      runner,
		req:         req,
		input:       input,
		dir:         filepath.Dir(input),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.running = true
	w.mu.Unlock()

	logging.Get(logging.CategoryWatch).Info("watching module",
		zap.String("input", w.input),
		zap.Duration("debounce", w.debounceDur))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit. A watcher cannot
// be restarted.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher", zap.Error(err))
	}
	logging.Get(logging.CategoryWatch).Debug("watcher stopped")
}

// Done is closed when the loop exits, including on context cancellation.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	log := logging.Get(logging.CategoryWatch)

	tick := w.debounceDur / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error("watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Failures++
			w.mu.Unlock()

		case <-ticker.C:
			if w.settled() {
				w.weave(ctx)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.input {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	default:
		// removes, renames away and chmod leave nothing to weave
		return
	}

	logging.Get(logging.CategoryWatch).Debug("input changed",
		zap.String("event", eventType),
		zap.String("path", event.Name))

	w.mu.Lock()
	now := time.Now()
	w.stats.Events++
	w.stats.LastEventTime = now
	w.stats.LastEventType = eventType
	w.pendingAt = now
	w.mu.Unlock()
}

// settled reports, and clears, a pending change older than the debounce
// window.
func (w *Watcher) settled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pendingAt.IsZero() || time.Since(w.pendingAt) < w.debounceDur {
		return false
	}
	w.pendingAt = time.Time{}
	return true
}

func (w *Watcher) weave(ctx context.Context) {
	out, err := w.runner.Run(ctx, w.req)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.LastRunTime = time.Now()
	if err != nil {
		w.stats.Failures++
		w.stats.LastError = err.Error()
	} else if out != nil && out.Changed {
		w.stats.Changed++
	}
	onRun := w.OnRun
	w.mu.Unlock()

	if err != nil {
		logging.Get(logging.CategoryWatch).Error("weave failed", zap.String("input", w.input), zap.Error(err))
	}
	if onRun != nil {
		onRun(out, err)
	}
}
