// Package testutil holds fixtures shared by package tests: a vault on a temp
// directory and an index on a temp SQLite file.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/notebridge/internal/index"
	"github.com/starford/notebridge/internal/storage"
)

// TestDB opens an index in the test's temp directory. It is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestVault returns an empty vault root and a provider over it.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	return root, store
}

// Seed writes notes into store, keyed by vault-relative path.
func Seed(t *testing.T, store storage.Provider, notes map[string]string) {
	t.Helper()
	for path, content := range notes {
		if err := store.Write(path, []byte(content)); err != nil {
			t.Fatalf("seed %s: %v", path, err)
		}
	}
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
