package store

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a checkpoint database file for changes using fsnotify.
// SQLite in WAL mode writes to sidecar files (-wal, -shm), so the watcher
// observes the parent directory and matches any file sharing the database's
// base name.
type Watcher struct {
	// Changes receives one signal per debounced burst of writes.
	Changes <-chan struct{}

	base    string
	changes chan struct{}
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the database at dbPath.
func NewWatcher(dbPath string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ch := make(chan struct{}, 1)
	w := &Watcher{
		Changes: ch,
		base:    filepath.Base(dbPath),
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}
	if err := fw.Add(filepath.Dir(dbPath)); err != nil {
		fw.Close()
		return nil, err
	}
	go w.loop()
	return w, nil
}

// Stop closes the watcher and waits for its loop to exit.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: a single append touches the db and -wal files several
	// times; collapse each burst into one signal.
	const debounce = 250 * time.Millisecond
	var pending bool
	var last time.Time
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isStoreFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending = true
				last = time.Now()
			}

		case <-ticker.C:
			if pending && time.Since(last) >= debounce {
				pending = false
				select {
				case w.changes <- struct{}{}:
				default: // Receiver busy; it will re-read anyway.
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal for a progress display.
		}
	}
}

func (w *Watcher) isStoreFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), w.base)
}
