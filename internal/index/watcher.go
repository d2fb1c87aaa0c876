package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/notebridge/internal/storage"
)

const (
	// writeSettle is how long a path must stay quiet before it is re-indexed.
	// Editors often emit several writes per save.
	writeSettle = 100 * time.Millisecond
	// renameSettle delays the reconcile pass that follows a rename.
	renameSettle = 200 * time.Millisecond
)

type watcher struct {
	db     NoteIndex
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback
	fsw    *fsnotify.Watcher

	// pending maps vault-relative paths to the change kind awaiting indexing.
	pending map[string]string
}

// Watch follows file changes under vaultRoot and keeps the index current
// until ctx is cancelled. cb, if non-nil, is called after each index change.
//
// Writes are debounced per path. Directories created at runtime are watched
// and their notes indexed. A rename triggers a reconcile pass, since the new
// name may arrive as a Create or not at all. Hidden files and directories are
// ignored.
func Watch(ctx context.Context, db NoteIndex, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	w := &watcher{
		db:      db,
		store:   store,
		root:    vaultRoot,
		logger:  logger,
		cb:      cb,
		fsw:     fsw,
		pending: make(map[string]string),
	}
	if err := w.addDirs(vaultRoot); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", vaultRoot))

	flush := time.NewTimer(time.Hour)
	flush.Stop()
	defer flush.Stop()
	rescan := time.NewTimer(time.Hour)
	rescan.Stop()
	defer rescan.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-flush.C:
			w.flush()

		case <-rescan.C:
			if _, _, err := reconcile(w.db, w.store, w.logger, w.cb); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			switch w.handle(ev) {
			case actionFlush:
				flush.Reset(writeSettle)
			case actionRescan:
				rescan.Reset(renameSettle)
			}

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

type action int

const (
	actionNone action = iota
	actionFlush
	actionRescan
)

func (w *watcher) handle(ev fsnotify.Event) action {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || storage.IsHidden(rel) {
		return actionNone
	}
	rel = filepath.ToSlash(rel)

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addDirs(ev.Name); err != nil {
				w.logger.Warn("watcher: add dir failed", slog.String("path", rel), slog.String("error", err.Error()))
			}
			w.queueDir(ev.Name)
			return actionFlush
		}
	}
	if !strings.HasSuffix(rel, ".md") {
		return actionNone
	}

	switch {
	case ev.Has(fsnotify.Create):
		w.pending[rel] = ChangeCreated
		return actionFlush
	case ev.Has(fsnotify.Write):
		if _, queued := w.pending[rel]; !queued {
			w.pending[rel] = ChangeUpdated
		}
		return actionFlush
	case ev.Has(fsnotify.Remove):
		delete(w.pending, rel)
		w.remove(rel)
	case ev.Has(fsnotify.Rename):
		delete(w.pending, rel)
		w.remove(rel)
		return actionRescan
	}
	return actionNone
}

// flush indexes every path that has settled.
func (w *watcher) flush() {
	for rel, kind := range w.pending {
		delete(w.pending, rel)
		data, err := w.store.Read(rel)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		id, err := IndexFile(w.db, rel, data)
		if err != nil {
			w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind), slog.Int64("id", id))
		w.cb.emit(kind, rel, id)
	}
}

func (w *watcher) remove(rel string) {
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.cb.emit(ChangeDeleted, rel, 0)
}

// queueDir queues the notes already inside a newly created directory.
func (w *watcher) queueDir(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".md") {
			return nil
		}
		if rel, err := filepath.Rel(w.root, p); err == nil && !storage.IsHidden(rel) {
			w.pending[filepath.ToSlash(rel)] = ChangeCreated
		}
		return nil
	})
}

// addDirs watches dir and every visible subdirectory.
func (w *watcher) addDirs(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(w.root, p); storage.IsHidden(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}
