package plugin

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay is how long the watcher waits for writes to settle.
const DefaultReloadDelay = 250 * time.Millisecond

// discoverKey is the pending-action key for rescanning search paths.
const discoverKey = ""

// ErrWatcherClosed is returned when starting a closed watcher.
var ErrWatcherClosed = errors.New("plugin watcher is closed")

// Watcher reloads plugins when their entry scripts change and loads new
// plugins dropped into a search path.
//
// Changes are debounced per plugin. Manifest edits are not picked up; the
// plugin must be unloaded and loaded again.
type Watcher struct {
	manager *Manager
	logger  *slog.Logger
	delay   time.Duration
	fsw     *fsnotify.Watcher

	mu      sync.Mutex
	ctx     context.Context
	watched map[string]bool
	pending map[string]*time.Timer
	closed  bool

	closeCh  chan struct{}
	closedWg sync.WaitGroup
	inflight sync.WaitGroup // running fire calls
}

// NewWatcher creates a watcher for the manager's plugins.
func NewWatcher(manager *Manager, delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		manager: manager,
		logger:  logger,
		delay:   delay,
		fsw:     fsw,
		watched: make(map[string]bool),
		pending: make(map[string]*time.Timer),
		closeCh: make(chan struct{}),
	}, nil
}

// Start watches the search paths and the directories of loaded plugins.
// Reloads run with ctx until Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.ctx = ctx
	w.mu.Unlock()

	w.syncDirs()

	w.closedWg.Add(1)
	go w.processLoop()
	return nil
}

// syncDirs adds watches for search paths and plugin directories not yet
// watched.
func (w *Watcher) syncDirs() {
	dirs := w.manager.Loader().Paths()
	for _, host := range w.manager.List() {
		dirs = append(dirs, host.Manifest().Path())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil || w.watched[abs] {
			continue
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			continue
		}
		if err := w.fsw.Add(abs); err != nil {
			w.logger.Warn("cannot watch plugin directory", "dir", abs, "error", err)
			continue
		}
		w.watched[abs] = true
	}
}

// Watched returns the number of watched directories.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("plugin watcher error", "error", err)
		}
	}
}

// handleFSEvent maps a file change to a plugin reload or a rescan.
func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
		return
	}
	path, err := filepath.Abs(ev.Name)
	if err != nil {
		return
	}

	if name, ok := w.pluginFor(path); ok {
		w.schedule(name)
		return
	}

	// A new plugin directory or script in a search path.
	for _, root := range w.manager.Loader().Paths() {
		abs, err := filepath.Abs(root)
		if err == nil && filepath.Dir(path) == abs {
			if info, err := os.Stat(path); err == nil && (info.IsDir() || filepath.Ext(path) == ".lua") {
				w.schedule(discoverKey)
			}
			return
		}
	}
}

// pluginFor returns the loaded plugin whose entry script is path.
func (w *Watcher) pluginFor(path string) (string, bool) {
	for _, host := range w.manager.List() {
		main, err := filepath.Abs(host.Manifest().MainPath())
		if err == nil && main == path {
			return host.Name(), true
		}
	}
	return "", false
}

// schedule runs the action for key after the delay, restarting the delay on
// repeated changes.
func (w *Watcher) schedule(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.pending[key]; ok {
		t.Reset(w.delay)
		return
	}
	w.pending[key] = time.AfterFunc(w.delay, func() { w.fire(key) })
}

func (w *Watcher) fire(key string) {
	w.mu.Lock()
	delete(w.pending, key)
	if w.closed {
		w.mu.Unlock()
		return
	}
	ctx := w.ctx
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	if key == discoverKey {
		if err := w.manager.LoadAll(ctx); err != nil {
			w.logger.Warn("plugin rescan reported errors", "error", err)
		}
		w.syncDirs()
		return
	}

	if err := w.manager.Reload(ctx, key); err != nil {
		w.logger.Error("plugin reload failed", "plugin", key, "error", err)
		return
	}
	w.logger.Info("plugin reloaded", "plugin", key)
}

// Close stops the watcher, cancels pending reloads and waits for a reload
// already in progress. That reload runs with the context given to Start.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for key, t := range w.pending {
		t.Stop()
		delete(w.pending, key)
	}
	w.mu.Unlock()

	close(w.closeCh)
	err := w.fsw.Close()
	w.closedWg.Wait()
	w.inflight.Wait()
	return err
}
