package statedir

import (
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher tracks whether a file may have changed on disk since the
// last Clean call, backed by an fsnotify watch on its parent directory
// (so it also observes editors and other processes that replace the file
// via rename-into-place rather than an in-place write).
//
// Construction always succeeds: if the OS-level watch cannot be
// established, IsDirty reports true forever and callers simply reload on
// every access, same as if no watcher existed.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	name    string
	dirty   atomic.Bool
}

// Watch starts watching path's parent directory for changes to path.
func Watch(path string) *FileWatcher {
	fw := &FileWatcher{name: filepath.Base(path)}
	fw.dirty.Store(true)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fw
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fw
	}
	fw.watcher = w
	go fw.run()
	return fw
}

func (fw *FileWatcher) run() {
	for {
		select {
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == fw.name {
				fw.dirty.Store(true)
			}
		case _, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// IsDirty reports whether the watched file may have changed since Clean
// was last called.
func (fw *FileWatcher) IsDirty() bool { return fw.dirty.Load() }

// Clean marks the current on-disk state as observed.
func (fw *FileWatcher) Clean() { fw.dirty.Store(false) }

// Close stops the underlying OS watch, if one was established.
func (fw *FileWatcher) Close() {
	if fw.watcher != nil {
		fw.watcher.Close()
	}
}
