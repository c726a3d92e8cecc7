package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"FileWatcher/lib/constant"
	"FileWatcher/lib/log"
	"FileWatcher/lib/types"

	"github.com/fsnotify/fsnotify"
)

// renameWindow is how long a Rename waits for the Create carrying the new
// name before it is reported as a deletion.
const renameWindow = 50 * time.Millisecond

// Watcher turns fsnotify notifications for one directory into ChangeEvents.
// Events are only delivered while the watcher is enabled.
type Watcher struct {
	config Config
	root   string
	logger *log.Logger
	fsw    *fsnotify.Watcher

	enabled atomic.Bool

	// owned by the run goroutine after New returns
	entries     map[string]fs.FileInfo
	pending     *pendingRename
	renameTimer *time.Timer

	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

// New registers the OS watch for c.Path. Delivery starts disabled.
func New(c Config) (*Watcher, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("path is empty")
	}
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve path `%s` fail: %w", c.Path, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open path fail: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path `%s` must be a directory", root)
	}
	if c.Filter == "" {
		c.Filter = constant.DefaultFilter
	}
	if c.ChangeTypes == 0 {
		c.ChangeTypes = constant.DefaultChangeTypes
	}
	if c.NotifyFilter == 0 {
		c.NotifyFilter = constant.DefaultNotifyFilter
	}
	if c.Tag == "" {
		c.Tag = "watcher"
	}
	logger := c.Logger
	if logger == nil {
		logger = log.NewLogger(os.Stdout, nil)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher failed: %w", err)
	}
	w := &Watcher{
		config:  c,
		root:    root,
		logger:  logger,
		fsw:     fsw,
		entries: make(map[string]fs.FileInfo),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("add path `%s` fail: %w", root, err)
	}
	if err := w.seed(); err != nil {
		fsw.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

// Root is the absolute watched directory.
func (w *Watcher) Root() string {
	return w.root
}

func (w *Watcher) Enable() {
	w.enabled.Store(true)
}

func (w *Watcher) Disable() {
	w.enabled.Store(false)
}

func (w *Watcher) Enabled() bool {
	return w.enabled.Load()
}

// Close releases the OS watch and waits for the event goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.Disable()
		close(w.done)
		err = w.fsw.Close()
		<-w.exited
	})
	return err
}

// seed records the entries present before watching starts, so a later rename
// can be matched to the file it moved.
func (w *Watcher) seed() error {
	if !w.config.IncludeSubdirectories {
		entries, err := os.ReadDir(w.root)
		if err != nil {
			return fmt.Errorf("read path `%s` fail: %w", w.root, err)
		}
		for _, entry := range entries {
			if info, err := entry.Info(); err == nil {
				w.entries[filepath.Join(w.root, entry.Name())] = info
			}
		}
		return nil
	}
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn(w.config.Tag, fmt.Sprintf("skip path `%s`: %s", path, err))
			return nil
		}
		if path == w.root {
			return nil
		}
		if info, err := d.Info(); err == nil {
			w.entries[path] = info
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("add path `%s` fail: %w", path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer close(w.exited)
	for {
		var renameC <-chan time.Time
		if w.renameTimer != nil {
			renameC = w.renameTimer.C
		}
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		case <-renameC:
			w.renameTimer = nil
			w.flushRename()
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.logger.Error(w.config.Tag, fmt.Sprintf("events lost for path `%s`: %s", w.root, err))
	} else {
		w.logger.Error(w.config.Tag, fmt.Sprintf("error watching path `%s`, filter %s: %s", w.root, w.config.Filter, err))
	}
	if w.config.OnError != nil {
		w.config.OnError(err)
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if path == w.root {
		return
	}
	name, err := filepath.Rel(w.root, path)
	if err != nil || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
		return
	}
	if !w.config.IncludeSubdirectories && strings.ContainsRune(name, filepath.Separator) {
		return
	}
	w.logger.Debug(w.config.Tag, fmt.Sprintf("event: %s path: %s", ev.Op.String(), path))
	now := time.Now()

	if ev.Has(fsnotify.Create) {
		var info fs.FileInfo
		if fi, err := os.Lstat(path); err == nil {
			info = fi
			w.entries[path] = fi
		}
		isDir := info != nil && info.IsDir()
		if w.pending != nil {
			old := w.takePending()
			if old.info != nil && info != nil && os.SameFile(old.info, info) {
				w.emit(NewRenamedEvent(path, name, old.fullPath, old.name, now), isDir)
				if isDir && w.config.IncludeSubdirectories {
					w.addTree(path, now, false)
				}
				return
			}
			w.emitDeleted(old)
		}
		w.emit(NewFileEvent(types.Created, path, name, now), isDir)
		if isDir && w.config.IncludeSubdirectories {
			w.addTree(path, now, true)
		}
		return
	}

	w.flushRename()
	switch {
	case ev.Has(fsnotify.Rename):
		info := w.forget(path)
		w.pending = &pendingRename{fullPath: path, name: name, info: info, time: now}
		w.renameTimer = time.NewTimer(renameWindow)
	case ev.Has(fsnotify.Remove):
		info := w.forget(path)
		w.emit(NewFileEvent(types.Deleted, path, name, now), info != nil && info.IsDir())
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Chmod):
		if changedAllowed(w.config.NotifyFilter, ev.Op) {
			info := w.entries[path]
			w.emit(NewFileEvent(types.Changed, path, name, now), info != nil && info.IsDir())
		}
	}
}

// forget drops a removed or moved path and everything below it, returning
// what was recorded for the path itself.
func (w *Watcher) forget(path string) fs.FileInfo {
	info := w.entries[path]
	delete(w.entries, path)
	if info == nil || !info.IsDir() {
		return info
	}
	prefix := path + string(filepath.Separator)
	for entry, child := range w.entries {
		if strings.HasPrefix(entry, prefix) {
			delete(w.entries, entry)
			if w.config.IncludeSubdirectories && child.IsDir() {
				_ = w.fsw.Remove(entry)
			}
		}
	}
	if w.config.IncludeSubdirectories {
		_ = w.fsw.Remove(path)
	}
	return info
}

func (w *Watcher) takePending() *pendingRename {
	p := w.pending
	w.pending = nil
	if w.renameTimer != nil {
		w.renameTimer.Stop()
		w.renameTimer = nil
	}
	return p
}

// flushRename reports an unpaired rename as a deletion: the entry left the
// watched tree.
func (w *Watcher) flushRename() {
	if w.pending == nil {
		return
	}
	w.emitDeleted(w.takePending())
}

func (w *Watcher) emitDeleted(p *pendingRename) {
	w.emit(NewFileEvent(types.Deleted, p.fullPath, p.name, p.time), p.info != nil && p.info.IsDir())
}

// addTree watches a directory that appeared under a recursive watch. When
// report is set, the entries it already holds are reported as Created.
func (w *Watcher) addTree(dir string, now time.Time, report bool) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				w.logger.Warn(w.config.Tag, fmt.Sprintf("add path `%s` fail: %s", path, err))
				return filepath.SkipDir
			}
		}
		if path == dir {
			return nil
		}
		if info, err := d.Info(); err == nil {
			w.entries[path] = info
		}
		if !report {
			return nil
		}
		name, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		w.emit(NewFileEvent(types.Created, path, name, now), d.IsDir())
		return nil
	})
	if err != nil {
		w.logger.Warn(w.config.Tag, fmt.Sprintf("walk path `%s` fail: %s", dir, err))
	}
}

func (w *Watcher) emit(e ChangeEvent, isDir bool) {
	if !w.enabled.Load() {
		return
	}
	if !w.config.ChangeTypes.Has(e.ChangeType()) {
		return
	}
	if !notifyAllows(w.config.NotifyFilter, e.ChangeType(), isDir) {
		return
	}
	matched := matchFilter(w.config.Filter, e.Name())
	if re, ok := e.(*RenamedEvent); ok && !matched {
		matched = matchFilter(w.config.Filter, re.OldName())
	}
	if !matched {
		return
	}
	if w.config.OnEvent != nil {
		w.config.OnEvent(e)
	}
}
