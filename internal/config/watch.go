package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultWatchDebounce coalesces the burst of events editors emit on save.
const defaultWatchDebounce = 250 * time.Millisecond

// Watcher reports changes to one config file.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func()
	onError  func(error)

	mu     sync.Mutex
	timer  *time.Timer
	doneCh chan struct{}
	once   sync.Once
}

// WatchOptions configures a config file watcher.
type WatchOptions struct {
	Debounce time.Duration
	OnChange func()
	OnError  func(error)
}

// Watch starts watching path until ctx ends or Close is called. The parent
// directory is watched so editors that replace the file on save are seen.
func Watch(ctx context.Context, path string, opts WatchOptions) (*Watcher, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("config path is required")
	}
	if opts.OnChange == nil {
		return nil, errors.New("config watch callback is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := EnsureConfigDir(abs); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	w := &Watcher{
		fsw:      fsw,
		path:     filepath.Clean(abs),
		debounce: debounce,
		onChange: opts.OnChange,
		onError:  opts.OnError,
		doneCh:   make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	var err error
	w.once.Do(func() {
		err = w.fsw.Close()
		<-w.doneCh
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}

// run forwards relevant filesystem events until the watcher closes.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.schedule()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// relevant reports whether one event touches the watched file contents.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}
