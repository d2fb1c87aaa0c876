// Package models defines the domain types shared across notebridge packages.
package models

import "time"

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RenderedNote is a note after the text pipeline and HTML rendering.
// Markdown holds the processed source with note links and www links expanded.
type RenderedNote struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
	Checksum string `json:"checksum"`
}

// ResolvedLink is the outcome of resolving a link target against the vault.
type ResolvedLink struct {
	Link   string `json:"link"`
	IsNote bool   `json:"is_note"`
	ID     int64  `json:"id,omitempty"`
	Path   string `json:"path,omitempty"`
	Title  string `json:"title,omitempty"`
	Exists bool   `json:"exists"`
}
