package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/notebridge/internal/apperr"
	"github.com/starford/notebridge/internal/checksum"
	"github.com/starford/notebridge/internal/models"
)

const (
	tempPattern = ".notebridge-tmp-*"
	noteExt     = ".md"
	defaultMode = fs.FileMode(0o644)
)

// FS is a Provider over a directory on the local disk.
type FS struct {
	root string
}

// NewFS opens the vault at root, which must be an existing directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// abs maps a vault-relative path to disk. Absolute paths and paths that
// climb out of the vault are apperr.ErrInvalidArgument.
func (f *FS) abs(rel string) (string, error) {
	if rel == "" || rel == "." {
		return f.root, nil
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: path %q is outside the vault", apperr.ErrInvalidArgument, rel)
	}
	return filepath.Join(f.root, local), nil
}

// IsHidden reports whether any element of the vault-relative path rel starts
// with a dot. Hidden entries (.git, .trash, editor state, in-flight temp
// files) are never treated as notes.
func IsHidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}

// List returns every visible note under dir with its checksum.
func (f *FS) List(dir string) ([]models.NoteMetadata, error) {
	base, err := f.abs(dir)
	if err != nil {
		return nil, err
	}
	var out []models.NoteMetadata
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		switch {
		case IsHidden(rel) && d.IsDir():
			return filepath.SkipDir
		case IsHidden(rel), d.IsDir(), filepath.Ext(p) != noteExt:
			return nil
		}
		meta, err := f.describe(p, rel, d)
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	}
	if err := filepath.WalkDir(base, walk); err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	return out, nil
}

func (f *FS) describe(abs, rel string, d fs.DirEntry) (models.NoteMetadata, error) {
	info, err := d.Info()
	if err != nil {
		return models.NoteMetadata{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return models.NoteMetadata{}, err
	}
	return models.NoteMetadata{
		Path:      filepath.ToSlash(rel),
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Read returns the content of a note.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces path with content through a synced temp file and a rename,
// so readers see either the old or the new note. An existing file keeps its
// permissions.
func (f *FS) Write(path string, content []byte) (err error) {
	abs, err := f.abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", path, err)
	}
	mode := defaultMode
	if info, statErr := os.Stat(abs); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err = tmp.Chmod(mode); err != nil {
		return fmt.Errorf("storage: chmod %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("storage: sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), abs); err != nil {
		return fmt.Errorf("storage: replace %s: %w", path, err)
	}
	return nil
}

// Delete removes a note and any directories it leaves empty.
func (f *FS) Delete(path string) error {
	abs, err := f.abs(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	f.pruneDirs(filepath.Dir(abs))
	return nil
}

// Move renames a note, creating target directories and pruning source
// directories left empty. An existing target is fs.ErrExist.
func (f *FS) Move(oldPath, newPath string) error {
	src, err := f.abs(oldPath)
	if err != nil {
		return err
	}
	dst, err := f.abs(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("storage: move to %s: %w", newPath, fs.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", newPath, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, err)
	}
	f.pruneDirs(filepath.Dir(src))
	return nil
}

// pruneDirs removes dir and its parents while they are empty, stopping at
// the vault root.
func (f *FS) pruneDirs(dir string) {
	for dir != f.root && strings.HasPrefix(dir, f.root+string(os.PathSeparator)) {
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Exists reports whether path names a regular file in the vault.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.abs(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}
