// Package watcher wraps fsnotify with a per-project recursive watch and a
// bounded work queue, so a burst of filesystem events never blocks the
// fsnotify event loop while the reconciler is busy with a previous one.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/openmined/filevine-s3-sync/internal/pathutil"
	"github.com/openmined/filevine-s3-sync/internal/queue"
)

// maxQueueDepth bounds the fast-path backlog per project. Once full,
// further events are dropped with a warning — the next full pass will still
// pick up whatever they described, so no change is permanently lost.
const maxQueueDepth = 4096

var ErrClosed = errors.New("watcher closed")

// Handler is invoked once per enqueued path, serialized (one at a time) per
// Watcher instance, on its own goroutine separate from the fsnotify loop.
type Handler func(ctx context.Context, path string)

// Watcher recursively watches a single project root and dispatches
// non-directory, non-ignored change events to a Handler via a bounded queue.
type Watcher struct {
	root    string
	handler Handler

	fsw      *fsnotify.Watcher
	pending  *queue.PriorityQueue[string]
	notify   chan struct{}
	sequence int

	mu     sync.Mutex
	closed bool
}

// New starts watching root recursively. The caller must call Run to begin
// dispatching events and Close to release the underlying fsnotify handles.
func New(root string, handler Handler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:    root,
		handler: handler,
		fsw:     fsw,
		pending: queue.NewPriorityQueue[string](),
		notify:  make(chan struct{}, 1),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %q: %w", root, err)
	}

	return w, nil
}

// Run drains fsnotify events into the bounded queue and, on a second
// goroutine, drains the queue into the handler. It blocks until ctx is done
// or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		w.pumpEvents(ctx)
	}()

	go func() {
		defer wg.Done()
		w.pumpQueue(ctx)
	}()

	wg.Wait()
}

func (w *Watcher) pumpEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "root", w.root, "error", err)
		}
	}
}

func (w *Watcher) pumpQueue(ctx context.Context) {
	for {
		path, ok := w.pending.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-w.notify:
				continue
			}
		}

		w.handler(ctx, path)
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				slog.Error("watcher add dir", "path", event.Name, "error", err)
			}
			// Directory events themselves are never enqueued for reconciliation.
			return
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if err := w.fsw.Remove(event.Name); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			slog.Debug("watcher remove watch", "path", event.Name, "error", err)
		}
	}

	if pathutil.IsIgnored(filepath.Base(event.Name)) {
		return
	}

	w.enqueue(event.Name)
}

func (w *Watcher) enqueue(path string) {
	if w.pending.Len() >= maxQueueDepth {
		slog.Warn("watcher queue full, dropping event", "root", w.root, "path", path)
		return
	}
	w.sequence++
	w.pending.Enqueue(path, w.sequence)

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %q: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if pathutil.IsIgnoredDir(d.Name()) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("fsnotify add %q: %w", path, addErr)
		}
		return nil
	})
}

// Close stops the underlying fsnotify watcher. Safe to call once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	return w.fsw.Close()
}
