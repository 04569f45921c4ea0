// Package watch reloads the engine's documents when they change on disk.
//
// Parent directories are watched rather than the files themselves: the
// stores replace files by atomic rename, which would detach a per-file
// watch. Bursts of events are debounced into one reload.
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a reload fires.
const DefaultDebounce = 300 * time.Millisecond

// ReloadFunc is called once per debounced burst of changes.
type ReloadFunc func() error

// Watcher watches a fixed set of files.
type Watcher struct {
	fsw      *fsnotify.Watcher
	files    map[string]bool
	reload   ReloadFunc
	debounce time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// New prepares a watcher for files. Nothing is watched until Start.
func New(files []string, reload ReloadFunc, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	w := &Watcher{
		fsw:      fsw,
		files:    map[string]bool{},
		reload:   reload,
		debounce: debounce,
		logger:   logger.Named("watch"),
		done:     make(chan struct{}),
	}
	dirs := map[string]bool{}
	for _, f := range files {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := fsw.Add(d); err != nil {
			// a missing directory just means nothing there to reload yet
			w.logger.Warn("cannot watch directory", zap.String("dir", d), zap.Error(err))
		}
	}
	return w, nil
}

// Start runs the event loop in the background.
func (w *Watcher) Start() {
	go w.loop()
}

// Close stops watching and cancels a pending reload.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			w.logger.Debug("change detected", zap.String("file", abs), zap.String("op", ev.Op.String()))
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.reload(); err != nil {
			w.logger.Error("reload failed", zap.Error(err))
			return
		}
		w.logger.Info("reloaded after change")
	})
}
