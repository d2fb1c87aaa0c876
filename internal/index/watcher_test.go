package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/starford/notebridge/internal/storage"
)

// watcherTestEnv returns a vault root, a provider over it and an empty index.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store, testDB(t)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects watcher callbacks.
type recorder struct {
	mu     sync.Mutex
	counts map[string]int
	lastID map[string]int64
}

func (r *recorder) record(kind, path string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[kind+":"+path]++
	r.lastID[path] = id
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[event]
}

func (r *recorder) id(path string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastID[path]
}

// startWatcher runs Watch until the test ends and waits for it to return.
func startWatcher(t *testing.T, db *DB, store storage.Provider, root string) *recorder {
	t.Helper()
	rec := &recorder{counts: map[string]int{}, lastID: map[string]int64{}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, db, store, root, quietLogger(), rec.record) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch: %v", err)
		}
	})
	// fsnotify needs a moment to register the initial directories.
	time.Sleep(100 * time.Millisecond)
	return rec
}

// eventually polls fn until it returns true or timeout elapses.
func eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Error(msg)
}

func indexed(db *DB, path string) func() bool {
	return func() bool {
		cs, _ := db.GetChecksum(path)
		return cs != ""
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_CreateReportsID(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	rec := startWatcher(t, db, store, root)

	writeFile(t, filepath.Join(root, "new.md"), "# New")

	eventually(t, 5*time.Second, indexed(db, "new.md"), "new file not indexed")
	eventually(t, 2*time.Second, func() bool { return rec.count("created:new.md") == 1 }, "no created callback")

	ids, err := db.KnownNoteIDs()
	if err != nil {
		t.Fatalf("KnownNoteIDs: %v", err)
	}
	if id := rec.id("new.md"); id == 0 || !ids.Has(strconv.FormatInt(id, 10)) {
		t.Errorf("callback id %d not among known ids %v", id, ids)
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	startWatcher(t, db, store, root)

	sub := filepath.Join(root, "subdir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(sub, "deep.md"), "# Deep")

	eventually(t, 5*time.Second, indexed(db, "subdir/deep.md"), "file in new subdir not indexed")
}

func TestWatcher_DirectoryMovedIn(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	startWatcher(t, db, store, root)

	outside := filepath.Join(t.TempDir(), "batch")
	writeFile(t, filepath.Join(outside, "one.md"), "# One")
	writeFile(t, filepath.Join(outside, "two.md"), "# Two")
	if err := os.Rename(outside, filepath.Join(root, "batch")); err != nil {
		t.Skipf("cross-directory rename unavailable: %v", err)
	}

	eventually(t, 5*time.Second, func() bool {
		return indexed(db, "batch/one.md")() && indexed(db, "batch/two.md")()
	}, "notes in moved directory not indexed")
}

func TestWatcher_Delete(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	writeFile(t, filepath.Join(root, "del.md"), "# Delete Me")
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	rec := startWatcher(t, db, store, root)

	if err := os.Remove(filepath.Join(root, "del.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, func() bool { return !indexed(db, "del.md")() }, "deleted file still indexed")
	if got := rec.count("deleted:del.md"); got != 1 {
		t.Errorf("deleted callbacks = %d, want 1", got)
	}
}

func TestWatcher_ExternalRenameGetsNewID(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	writeFile(t, filepath.Join(root, "old.md"), "# Rename")
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	before, err := db.GetNote("old.md")
	if err != nil {
		t.Fatalf("precondition: %v", err)
	}
	startWatcher(t, db, store, root)

	if err := os.Rename(filepath.Join(root, "old.md"), filepath.Join(root, "renamed.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, func() bool {
		return !indexed(db, "old.md")() && indexed(db, "renamed.md")()
	}, "rename not reconciled")

	// Only MoveNote keeps ids. A rename behind the server's back is a new note.
	after, err := db.GetNote("renamed.md")
	if err == nil && after.ID == before.ID {
		t.Errorf("renamed note reused id %d", after.ID)
	}
}

func TestWatcher_RenamedIndexEntryKeepsID(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	writeFile(t, filepath.Join(root, "a.md"), "# A")
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	before, err := db.GetNote("a.md")
	if err != nil {
		t.Fatal(err)
	}
	startWatcher(t, db, store, root)

	// The order MoveNote uses: index first, then the file.
	if err := db.RenameNote("a.md", "b.md"); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(filepath.Join(root, "a.md"), filepath.Join(root, "b.md")); err != nil {
		t.Fatal(err)
	}

	time.Sleep(writeSettle + renameSettle + 200*time.Millisecond)
	after, err := db.GetNote("b.md")
	if err != nil {
		t.Fatalf("GetNote(b.md): %v", err)
	}
	if after.ID != before.ID {
		t.Errorf("id changed from %d to %d", before.ID, after.ID)
	}
	if indexed(db, "a.md")() {
		t.Error("old path came back")
	}
}

func TestWatcher_DebouncesWritesAndSkipsHidden(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	writeFile(t, filepath.Join(root, "busy.md"), "# v0")
	if err := os.Mkdir(filepath.Join(root, ".trash"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	rec := startWatcher(t, db, store, root)

	const writes = 5
	for i := 1; i <= writes; i++ {
		writeFile(t, filepath.Join(root, "busy.md"), "# v"+strconv.Itoa(i))
	}
	writeFile(t, filepath.Join(root, ".trash", "gone.md"), "# hidden")

	eventually(t, 5*time.Second, func() bool {
		n, err := db.GetNote("busy.md")
		return err == nil && n.Title == "v5"
	}, "final write not indexed")

	time.Sleep(300 * time.Millisecond)
	if got := rec.count("updated:busy.md"); got < 1 || got >= writes {
		t.Errorf("updated callbacks = %d, want between 1 and %d", got, writes-1)
	}
	if indexed(db, ".trash/gone.md")() {
		t.Error("hidden note was indexed")
	}
}
