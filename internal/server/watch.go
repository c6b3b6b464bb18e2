package server

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// fileWatcher calls onChange after the watched file changed and no further
// change arrived for the debounce window.
//
// The parent directory is watched rather than the file itself, so editors
// that save by rename-and-replace keep triggering reloads.
type fileWatcher struct {
	path     string
	name     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func()
	logger   *log.Logger

	done     chan struct{}
	stopOnce sync.Once
}

func newFileWatcher(path string, debounce time.Duration, onChange func(), logger *log.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &fileWatcher{
		path:     abs,
		name:     filepath.Base(abs),
		watcher:  w,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns once the directory watch is registered.
func (w *fileWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.watcher.Close()
		return err
	}
	go w.loop(ctx)
	w.logger.Debug("watching", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop ends watching. Safe to call more than once.
func (w *fileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *fileWatcher) loop(ctx context.Context) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("source changed", "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		case <-fire:
			fire = nil
			w.onChange()
		}
	}
}

func (w *fileWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Base(ev.Name) != w.name {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
