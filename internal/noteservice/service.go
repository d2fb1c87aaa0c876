// Package noteservice coordinates vault storage, the SQLite index and the
// text pipeline behind the HTTP and MCP surfaces.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/starford/notebridge/internal/apperr"
	"github.com/starford/notebridge/internal/checksum"
	"github.com/starford/notebridge/internal/index"
	"github.com/starford/notebridge/internal/parser"
	"github.com/starford/notebridge/internal/render"
	"github.com/starford/notebridge/internal/storage"
	"github.com/starford/notebridge/internal/textproc"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID          int64          `json:"id"`
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Excerpt     string         `json:"excerpt"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Backlinks   []string       `json:"backlinks"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	Excerpt   string    `json:"excerpt"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IDProvider supplies the ids that note links are confirmed against.
type IDProvider interface {
	KnownNoteIDs() (textproc.IDSet, error)
}

// Service coordinates storage and index operations.
type Service struct {
	store      storage.Provider
	db         index.NoteIndex
	ids        IDProvider
	textOpts   textproc.Options
	renderOpts render.Options
	renderer   *render.Renderer
	logger     *slog.Logger
}

// NewService creates a new note service. Unless overridden by WithIDProvider,
// the index itself supplies known note ids.
func NewService(store storage.Provider, db index.NoteIndex, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		ids:      db,
		textOpts: textproc.DefaultOptions(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.textOpts.InternalLinkPrefix == "" {
		s.textOpts.InternalLinkPrefix = textproc.DefaultInternalLinkPrefix
	}
	if s.textOpts.WWWProtocol == "" {
		s.textOpts.WWWProtocol = textproc.DefaultWWWProtocol
	}
	s.renderOpts.InternalLinkPrefix = s.textOpts.InternalLinkPrefix
	s.renderer = render.New(s.renderOpts)
	return s
}

// GetNote reads a note from storage, parses it, and enriches with backlinks.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, data)
}

// GetNoteByID resolves id through the index and returns the note.
func (s *Service) GetNoteByID(ctx context.Context, id int64) (*NoteDetail, error) {
	row, err := s.db.GetNoteByID(id)
	if err != nil {
		return nil, err
	}
	return s.GetNote(ctx, row.Path)
}

// validNotePath rejects paths that the vault scan would never pick up.
func validNotePath(path string) error {
	if !strings.HasSuffix(path, ".md") {
		return fmt.Errorf("%w: %s: note paths must end in .md", apperr.ErrInvalidArgument, path)
	}
	if storage.IsHidden(path) {
		return fmt.Errorf("%w: %s: hidden paths are not notes", apperr.ErrInvalidArgument, path)
	}
	return nil
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, path string, content []byte) (*NoteDetail, error) {
	if err := validNotePath(path); err != nil {
		return nil, err
	}
	exists, err := s.store.Exists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if _, err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, content)
}

// UpdateNote writes updated content with optimistic concurrency.
func (s *Service) UpdateNote(_ context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(existing, ifMatch) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if _, err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, content)
}

// MoveNote renames a note. The index entry moves first so the note keeps its
// id and numeric links to it keep resolving; the watcher then sees only a
// path that is already indexed.
func (s *Service) MoveNote(_ context.Context, from, to string) (*NoteDetail, error) {
	if from == to {
		return nil, fmt.Errorf("%w: source and target are the same", apperr.ErrInvalidArgument)
	}
	if err := validNotePath(to); err != nil {
		return nil, err
	}
	data, err := s.read(from)
	if err != nil {
		return nil, err
	}
	exists, err := s.store.Exists(to)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.ErrAlreadyExists
	}

	renamed := true
	if err := s.db.RenameNote(from, to); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		renamed = false
	}
	if err := s.store.Move(from, to); err != nil {
		if renamed {
			if rbErr := s.db.RenameNote(to, from); rbErr != nil {
				s.logger.Error("move: index rollback failed", slog.String("from", from), slog.String("to", to), slog.String("error", rbErr.Error()))
			}
		}
		if errors.Is(err, fs.ErrExist) {
			return nil, apperr.ErrAlreadyExists
		}
		return nil, err
	}
	if _, err := s.IndexFile(to, data); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(to, data)
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.db.DeleteNote(path)
}

// ListNotes returns paginated notes with optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			ID:        r.ID,
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			Excerpt:   r.Excerpt,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns all nodes and links for graph visualization.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}

// Backlinks returns all note paths that link to the given target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	return s.db.Backlinks(target)
}

// IndexFile parses data and upserts it into the index, returning the note id.
func (s *Service) IndexFile(path string, data []byte) (int64, error) {
	return index.IndexFile(s.db, path, data)
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(path)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		ID:          s.lookupID(path),
		Path:        path,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Excerpt:     res.Excerpt,
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(bl),
		UpdatedAt:   time.Now(),
	}, nil
}

// lookupID returns the indexed id of path, or zero if the note is not indexed yet.
func (s *Service) lookupID(path string) int64 {
	row, err := s.db.GetNote(path)
	if err != nil {
		return 0
	}
	return row.ID
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
