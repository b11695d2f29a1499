package loader

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher is a closable handle on a single plugin directory's
// filesystem events.
type Watcher interface {
	Events() <-chan struct{}
	Close() error
}

// WatcherFactory obtains a Watcher narrowly scoped to dir. The loader
// never watches the global installation root, only a single plugin's
// own directory.
type WatcherFactory interface {
	Watch(dir string) (Watcher, error)
}

// FSNotifyWatcherFactory is the production WatcherFactory, using
// fsnotify directory watches for dev-mode plugin reload.
type FSNotifyWatcherFactory struct{}

func (FSNotifyWatcherFactory) Watch(dir string) (Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	fw := &fsnotifyWatcher{watcher: w, events: make(chan struct{}, 1)}
	go fw.pump()
	return fw, nil
}

type fsnotifyWatcher struct {
	watcher *fsnotify.Watcher
	events  chan struct{}
}

func (w *fsnotifyWatcher) pump() {
	for {
		select {
		case _, ok := <-w.watcher.Events:
			if !ok {
				close(w.events)
				return
			}
			select {
			case w.events <- struct{}{}:
			default:
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *fsnotifyWatcher) Events() <-chan struct{} { return w.events }

func (w *fsnotifyWatcher) Close() error { return w.watcher.Close() }
