package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/notebridge/internal/apperr"
	"github.com/starford/notebridge/internal/checksum"
	"github.com/starford/notebridge/internal/mdutil"
	"github.com/starford/notebridge/internal/models"
	"github.com/starford/notebridge/internal/parser"
	"github.com/starford/notebridge/internal/textproc"
)

// ProcessText runs text through the default chain against a fresh snapshot
// of known note ids.
func (s *Service) ProcessText(_ context.Context, text string) string {
	return s.chain().Apply(text)
}

// RenderNote reads the note at path and returns its processed Markdown body
// and HTML.
func (s *Service) RenderNote(ctx context.Context, path string) (*models.RenderedNote, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}

	processed := s.ProcessText(ctx, res.Body)
	html, err := s.renderer.Render(processed)
	if err != nil {
		return nil, err
	}
	return &models.RenderedNote{
		ID:       s.lookupID(path),
		Path:     path,
		Title:    res.Title,
		Markdown: processed,
		HTML:     html,
		Checksum: checksum.Sum(data),
	}, nil
}

// RenderNoteByID is RenderNote for a note addressed by id.
func (s *Service) RenderNoteByID(ctx context.Context, id int64) (*models.RenderedNote, error) {
	row, err := s.db.GetNoteByID(id)
	if err != nil {
		return nil, err
	}
	return s.RenderNote(ctx, row.Path)
}

// ResolveLink reports what a clicked link points at. Links carrying the
// internal note prefix are looked up by id; anything else is external.
func (s *Service) ResolveLink(_ context.Context, link string) (*models.ResolvedLink, error) {
	out := &models.ResolvedLink{Link: link}
	id, ok := textproc.ExtractNoteID(s.textOpts.InternalLinkPrefix, link)
	if !ok {
		return out, nil
	}
	out.IsNote = true
	out.ID = id

	row, err := s.db.GetNoteByID(id)
	if errors.Is(err, apperr.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.Exists = true
	out.Path = row.Path
	out.Title = row.Title
	return out, nil
}

// ToggleCheckbox sets the checkbox at index (zero-based, skipping fenced
// code) in the note at path and writes the note back. Without ifMatch the
// write is pinned to the version that was read, so a concurrent edit yields
// ErrConflict instead of being overwritten.
func (s *Service) ToggleCheckbox(ctx context.Context, path string, index int, checked bool, ifMatch string) (*NoteDetail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	updated, err := mdutil.SetCheckboxStatus(string(data), index, checked)
	if err != nil {
		return nil, fmt.Errorf("%w: checkbox %d: %w", apperr.ErrInvalidArgument, index, err)
	}
	if ifMatch == "" {
		ifMatch = checksum.Sum(data)
	}
	return s.UpdateNote(ctx, path, []byte(updated), ifMatch)
}

// chain builds the default chain for one request. A failing id lookup leaves
// note links unresolved instead of failing the render.
func (s *Service) chain() *textproc.Chain {
	known, err := s.ids.KnownNoteIDs()
	if err != nil {
		s.logger.Warn("known note ids unavailable", slog.String("error", err.Error()))
		known = nil
	}
	return textproc.NewDefaultChain(s.textOpts, known)
}
