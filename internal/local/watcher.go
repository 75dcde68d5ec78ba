package local

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/ignore"
	"github.com/openmined/trsync/internal/queue"
	"github.com/openmined/trsync/internal/utils"
	"github.com/rjeczalik/notify"
)

const (
	eventBufferSize     = 64
	DefaultRenameWindow = 50 * time.Millisecond
)

type pendingRename struct {
	path  string
	timer *time.Timer
}

// Watcher turns filesystem notifications under root into raw local events.
type Watcher struct {
	root         string
	ignore       *ignore.List
	out          *queue.Queue[event.Local]
	renameWindow time.Duration

	rawEvents chan notify.EventInfo
	done      chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	dirs    mapset.Set[string]
	pending []*pendingRename
}

// NewWatcher watches root, which must already be resolved (no symlinks).
func NewWatcher(root string, ignoreList *ignore.List, out *queue.Queue[event.Local]) *Watcher {
	return &Watcher{
		root:         root,
		ignore:       ignoreList,
		out:          out,
		renameWindow: DefaultRenameWindow,
		done:         make(chan struct{}),
		dirs:         mapset.NewThreadUnsafeSet[string](),
	}
}

// SetRenameWindow sets how long a rename source waits for its destination.
func (w *Watcher) SetRenameWindow(d time.Duration) {
	w.renameWindow = d
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("local watcher start", "dir", w.root)

	if err := w.indexDirs(); err != nil {
		return err
	}

	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	recursivePath := filepath.Join(w.root, "...")
	if err := notify.Watch(recursivePath, w.rawEvents, notify.Create, notify.Remove, notify.Rename, notify.Write); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.handleEvents(ctx)
	return nil
}

func (w *Watcher) Stop() {
	slog.Info("local watcher stopping")
	close(w.done)
	if w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}
	w.wg.Wait()

	w.mu.Lock()
	for _, p := range w.pending {
		p.timer.Stop()
	}
	w.pending = nil
	w.mu.Unlock()
	slog.Info("local watcher stopped")
}

func (w *Watcher) indexDirs() error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == w.root {
			return err
		}
		rel, err := utils.RelPath(w.root, path)
		if err != nil {
			return err
		}
		if w.ignore.IgnoredPath(rel) {
			return filepath.SkipDir
		}
		w.dirs.Add(rel)
		return nil
	})
}

func (w *Watcher) handleEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ei, ok := <-w.rawEvents:
			if !ok {
				return
			}
			w.handle(ei.Event(), ei.Path())
		}
	}
}

func (w *Watcher) handle(op notify.Event, absPath string) {
	rel, err := utils.RelPath(w.root, absPath)
	if err != nil || rel == "." {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ignored := w.ignore.IgnoredPath(rel)
	switch op {
	case notify.Create:
		if !ignored {
			w.arrived(rel, absPath)
		}
	case notify.Write:
		if !ignored && !w.dirs.Contains(rel) && utils.FileExists(absPath) {
			w.emit(event.Modified(rel))
		}
	case notify.Remove:
		if !ignored {
			w.emit(event.Deleted(rel))
		}
		w.forgetDir(rel)
	case notify.Rename:
		switch {
		case utils.PathExists(absPath):
			if !ignored {
				w.arrived(rel, absPath)
			}
		case ignored:
			// its destination, if watched, is reported as created
		default:
			w.departed(rel)
		}
	}
}

// arrived handles a new path, pairing it with a pending rename source when there is one.
func (w *Watcher) arrived(rel, absPath string) {
	kind, err := content.KindOfPath(absPath)
	if err != nil {
		return
	}

	if len(w.pending) > 0 {
		source := w.pending[0]
		w.pending = w.pending[1:]
		source.timer.Stop()

		if w.kindOf(source.path) == kind {
			w.emit(event.Renamed(source.path, rel))
			w.moveDir(source.path, rel)
			return
		}
		w.emit(event.Deleted(source.path))
		w.forgetDir(source.path)
	}

	w.emit(event.Created(rel))
	if kind == content.KindFolder {
		w.dirs.Add(rel)
		w.announceChildren(absPath)
	}
}

// announceChildren reports the content of a folder moved in from outside, parents first.
func (w *Watcher) announceChildren(absDir string) {
	_ = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == absDir {
			return nil
		}
		rel, err := utils.RelPath(w.root, path)
		if err != nil {
			return nil
		}
		if w.ignore.IgnoredPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			w.dirs.Add(rel)
		}
		w.emit(event.Created(rel))
		return nil
	})
}

func (w *Watcher) departed(rel string) {
	p := &pendingRename{path: rel}
	p.timer = time.AfterFunc(w.renameWindow, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, q := range w.pending {
			if q == p {
				w.pending = append(w.pending[:i], w.pending[i+1:]...)
				w.emit(event.Deleted(rel))
				w.forgetDir(rel)
				return
			}
		}
	})
	w.pending = append(w.pending, p)
}

func (w *Watcher) kindOf(rel string) content.Kind {
	if w.dirs.Contains(rel) {
		return content.KindFolder
	}
	return content.KindOfName(filepath.Base(rel))
}

func (w *Watcher) moveDir(from, to string) {
	if !w.dirs.Contains(from) {
		return
	}
	prefix := from + "/"
	for _, dir := range w.dirs.ToSlice() {
		if dir == from || strings.HasPrefix(dir, prefix) {
			w.dirs.Remove(dir)
			w.dirs.Add(to + dir[len(from):])
		}
	}
}

func (w *Watcher) forgetDir(rel string) {
	if !w.dirs.Contains(rel) {
		return
	}
	prefix := rel + "/"
	for _, dir := range w.dirs.ToSlice() {
		if dir == rel || strings.HasPrefix(dir, prefix) {
			w.dirs.Remove(dir)
		}
	}
}

func (w *Watcher) emit(ev event.Local) {
	slog.Debug("local watcher", "event", ev)
	w.out.Push(ev)
}
