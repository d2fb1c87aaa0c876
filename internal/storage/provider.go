// Package storage reads and writes the note vault. Paths are vault-relative
// and use forward slashes.
package storage

import "github.com/starford/notebridge/internal/models"

// Provider is what the index and the note service need from a vault.
//
// Read, Delete and Move report a missing source with an error satisfying
// errors.Is(err, fs.ErrNotExist). Move never replaces an existing target.
type Provider interface {
	List(dir string) ([]models.NoteMetadata, error)
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
	Delete(path string) error
	Exists(path string) (bool, error)
	Move(oldPath, newPath string) error
}

var _ Provider = (*FS)(nil)
