package syncer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last filesystem event
// before a re-sync runs. A save-all in an editor lands as one sync pass,
// not one per file.
const DefaultDebounce = 500 * time.Millisecond

// Watcher keeps the store continuously converged with the corpus. Events
// coalesce in a pending set; once the corpus goes quiet for the debounce
// interval, one incremental sync pass picks up everything at once.
type Watcher struct {
	syncer   *Syncer
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a watcher over the syncer's corpus root. Call Run to
// start it.
func NewWatcher(s *Syncer, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		syncer:   s,
		watcher:  fsw,
		debounce: debounce,
		logger:   s.logger,
		pending:  make(map[string]time.Time),
	}, nil
}

// Run watches until ctx is cancelled. It returns within one debounce
// interval of cancellation, after the in-flight sync pass, if any,
// finishes saving.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addRecursive(w.syncer.root); err != nil {
		return err
	}

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-ticker.C:
			if !w.takeQuietBatch() {
				continue
			}
			if _, err := w.syncer.Sync(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Partial failures already logged per file; a full
				// failure should not kill the watch loop.
				w.logger.Warn("sync failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || skipDirs[name] {
		return
	}

	// New directories need their own watch before events under them flow.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
		}
	}

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		w.pending[event.Name] = time.Now()
		w.mu.Unlock()
	}
}

// takeQuietBatch drains the pending set when the last event is older than
// the debounce interval. Returning false keeps accumulating.
func (w *Watcher) takeQuietBatch() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return false
	}
	now := time.Now()
	for _, at := range w.pending {
		if now.Sub(at) < w.debounce {
			return false
		}
	}
	w.pending = make(map[string]time.Time)
	return true
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && (skipDirs[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		// Watch failures on individual directories are not fatal.
		_ = w.watcher.Add(path)
		return nil
	})
}
