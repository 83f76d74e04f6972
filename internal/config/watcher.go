package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"github.com/penwyp/go-eo-explorer/internal/util"
)

const DefaultReloadDelay = 200 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk and publishes
// every successfully validated result.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	updates  chan *Config
	debounce func(func())
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewWatcher watches the directory holding path, so editors that replace the
// file instead of writing it in place are still seen. Bursts of events within
// delay trigger a single reload.
func NewWatcher(path string, delay time.Duration) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		watcher:  fsw,
		updates:  make(chan *Config, 1),
		debounce: debounce.New(delay),
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.debounce(w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			util.LogError("Config watch error: " + err.Error())

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path, false)
	if err != nil {
		util.LogErrorf("Config reload of %s failed, keeping previous config: %v", w.path, err)
		return
	}
	util.LogInfof("Config reloaded from %s", w.path)

	select {
	case <-w.done:
		return
	default:
	}
	// Only the newest config matters to a slow reader.
	select {
	case w.updates <- cfg:
	default:
		select {
		case <-w.updates:
		default:
		}
		select {
		case w.updates <- cfg:
		default:
		}
	}
}

// Updates delivers reloaded configurations. It is never closed.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
