package index

import "github.com/starford/notebridge/internal/textproc"

// NoteIndex is the index as seen by Sync, Watch and the note service.
type NoteIndex interface {
	// Writes. Each runs in a single transaction.
	UpsertNote(n NoteRow, body string, links, noteRefs []string) (int64, error)
	DeleteNote(path string) error
	RenameNote(oldPath, newPath string) error

	// GetChecksum returns "" for an unindexed path.
	GetChecksum(path string) (string, error)
	// A missing note is apperr.ErrNotFound.
	GetNote(path string) (*NoteRow, error)
	GetNoteByID(id int64) (*NoteRow, error)

	ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphLink, error)
	Backlinks(target string) ([]string, error)

	// KnownNoteIDs is a fresh snapshot on every call.
	KnownNoteIDs() (textproc.IDSet, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)

	Close() error
}

var _ NoteIndex = (*DB)(nil)
