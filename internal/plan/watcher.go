package plan

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is a reload of the watched plan file. Err is set when the file
// was removed or no longer decodes; Plan is nil in that case.
type Change struct {
	Path string
	Plan *Plan
	Err  error
}

// Watcher reloads a plan file whenever it changes on disk. Editors often
// replace files instead of writing them in place, so the parent directory
// is watched and events are filtered by file name.
type Watcher struct {
	Path    string
	Changes <-chan Change // Read-only external channel

	debounce time.Duration
	changes  chan Change // Internal write channel
	done     chan struct{}
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the plan file at path.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan Change, 16)
	return &Watcher{
		Path:     abs,
		Changes:  ch,
		debounce: 100 * time.Millisecond,
		changes:  ch,
		done:     make(chan struct{}),
		watcher:  fw,
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.Path)); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	var pending time.Time
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				if !pending.IsZero() {
					w.emit()
				}
				return
			}
			if filepath.Clean(event.Name) != w.Path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending = time.Now()
			}

		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= w.debounce {
				w.emit()
				pending = time.Time{}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal.
		}
	}
}

func (w *Watcher) emit() {
	p, err := Load(w.Path)
	w.changes <- Change{Path: w.Path, Plan: p, Err: err}
}
