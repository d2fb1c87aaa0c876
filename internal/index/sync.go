package index

import (
	"log/slog"
	"time"

	"github.com/starford/notebridge/internal/checksum"
	"github.com/starford/notebridge/internal/parser"
	"github.com/starford/notebridge/internal/storage"
)

// Change kinds reported to an EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EventCallback is called after an index change. id is zero for deletions.
type EventCallback func(kind, path string, id int64)

func (cb EventCallback) emit(kind, path string, id int64) {
	if cb != nil {
		cb(kind, path, id)
	}
}

// Sync brings the index in line with the vault. Changed files are parsed and
// upserted, and index entries without a file are removed.
func Sync(db NoteIndex, store storage.Provider, logger *slog.Logger) error {
	indexed, removed, err := reconcile(db, store, logger, nil)
	if err != nil {
		return err
	}
	logger.Info("sync: done", slog.Int("indexed", indexed), slog.Int("removed", removed))
	return nil
}

// reconcile diffs vault checksums against the index and applies the
// difference, reporting each change to cb.
func reconcile(db NoteIndex, store storage.Provider, logger *slog.Logger, cb EventCallback) (indexed, removed int, err error) {
	metas, err := store.List("")
	if err != nil {
		return 0, 0, err
	}
	known, err := db.AllChecksums()
	if err != nil {
		return 0, 0, err
	}

	onDisk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = struct{}{}
		prev, seen := known[m.Path]
		if seen && prev == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		id, err := IndexFile(db, m.Path, data)
		if err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		indexed++
		kind := ChangeUpdated
		if !seen {
			kind = ChangeCreated
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path), slog.String("op", kind), slog.Int64("id", id))
		cb.emit(kind, m.Path, id)
	}

	for p := range known {
		if _, ok := onDisk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
		cb.emit(ChangeDeleted, p, 0)
	}
	return indexed, removed, nil
}

// IndexFile parses data and upserts it into the DB, returning the note id.
func IndexFile(db NoteIndex, path string, data []byte) (int64, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return 0, err
	}
	return db.UpsertNote(NoteRow{
		Path:      path,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		Tags:      res.Tags,
		Excerpt:   res.Excerpt,
		UpdatedAt: time.Now(),
	}, res.Body, res.Links, res.NoteRefs)
}
