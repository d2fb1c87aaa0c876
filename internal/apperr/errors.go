// Package apperr holds the sentinel errors shared by the service layer and
// its transports. Wrap them with %w and test with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound means no note exists at the requested path or id.
	ErrNotFound = errors.New("not found")

	// ErrConflict means an If-Match checksum no longer matches the stored note.
	ErrConflict = errors.New("checksum conflict")

	// ErrAlreadyExists means a create or move target is taken.
	ErrAlreadyExists = errors.New("already exists")

	ErrInvalidArgument = errors.New("invalid argument")
)
