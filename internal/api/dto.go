package api

import (
	"github.com/starford/notebridge/internal/models"
	"github.com/starford/notebridge/internal/noteservice"
)

// Note payloads come straight from the service layer.
type (
	NoteDetail   = noteservice.NoteDetail
	NoteListItem = noteservice.NoteListItem
	RenderedNote = models.RenderedNote
	ResolvedLink = models.ResolvedLink
)

// CreateNoteRequest is the body of POST /notes.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"projects/plan.md" validate:"required"`
	Content string `json:"content" example:"# Plan\nsee [design](12)" validate:"required"`
}

// UpdateNoteRequest is the body of PUT /notes/{path}.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Plan\n- [x] draft" validate:"required"`
}

// MoveNoteRequest is the body of POST /move/{path}.
type MoveNoteRequest struct {
	To string `json:"to" example:"archive/plan.md" validate:"required"`
}

// CheckboxRequest sets the state of the index-th task checkbox, counting
// from zero and skipping fenced code.
type CheckboxRequest struct {
	Index   int  `json:"index" example:"0"`
	Checked bool `json:"checked" example:"true"`
}

// ProcessRequest carries raw markdown for the link pipeline.
type ProcessRequest struct {
	Text string `json:"text" example:"see [design](12) and www.example.com"`
}

// ProcessResponse carries the rewritten markdown.
type ProcessResponse struct {
	Text string `json:"text" example:"see [design](https://notebridge/notes/12) and https://www.example.com"`
}

type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"3" validate:"required"`
}

type BacklinksResponse struct {
	Path      string   `json:"path" example:"projects/plan.md" validate:"required"`
	Backlinks []string `json:"backlinks" validate:"required"`
}

type SearchResult struct {
	ID      int64  `json:"id" example:"12" validate:"required"`
	Path    string `json:"path" example:"projects/plan.md" validate:"required"`
	Title   string `json:"title" example:"Plan" validate:"required"`
	Snippet string `json:"snippet" example:"...the [plan] for..." validate:"required"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphNode is keyed by note path.
type GraphNode struct {
	ID    string `json:"id" example:"projects/plan.md" validate:"required"`
	Title string `json:"title,omitempty" example:"Plan"`
}

// GraphLink joins two note paths. Wikilinks and id links both produce edges.
type GraphLink struct {
	Source string `json:"source" example:"projects/plan.md" validate:"required"`
	Target string `json:"target" example:"projects/design.md" validate:"required"`
}

type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink `json:"links" validate:"required"`
}
