package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/notebridge/internal/apperr"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	vault, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return vault
}

func mustWrite(t *testing.T, v *FS, files ...string) {
	t.Helper()
	for _, p := range files {
		if err := v.Write(p, []byte(p)); err != nil {
			t.Fatalf("Write(%s): %v", p, err)
		}
	}
}

func readString(t *testing.T, v *FS, path string) string {
	t.Helper()
	data, err := v.Read(path)
	if err != nil {
		t.Fatalf("Read(%s): %v", path, err)
	}
	return string(data)
}

func TestWrite_ReplacesAndLeavesNoTemp(t *testing.T) {
	v := tempVault(t)
	for _, content := range []string{"# first\n", "# second\n"} {
		if err := v.Write("a/b/note.md", []byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if got := readString(t, v, "a/b/note.md"); got != content {
			t.Errorf("Read = %q, want %q", got, content)
		}
	}
	leftovers, _ := filepath.Glob(filepath.Join(v.root, "a", "b", tempPattern))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestWrite_KeepsPermissions(t *testing.T) {
	v := tempVault(t)
	mustWrite(t, v, "mode.md")
	abs := filepath.Join(v.root, "mode.md")
	if err := os.Chmod(abs, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := v.Write("mode.md", []byte("again")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestDelete_PrunesEmptyDirs(t *testing.T) {
	v := tempVault(t)
	mustWrite(t, v, "keep/one.md", "keep/deep/two.md")

	if err := v.Delete("keep/deep/two.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(v.root, "keep", "deep")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("empty dir kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(v.root, "keep")); err != nil {
		t.Errorf("non-empty dir removed: %v", err)
	}
	if _, err := v.Read("keep/deep/two.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Read deleted = %v, want fs.ErrNotExist", err)
	}
	if err := v.Delete("keep/deep/two.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second Delete = %v, want fs.ErrNotExist", err)
	}
	if _, err := os.Stat(v.root); err != nil {
		t.Errorf("root removed: %v", err)
	}
}

func TestMove(t *testing.T) {
	v := tempVault(t)
	mustWrite(t, v, "from/old.md", "taken.md")

	if err := v.Move("from/old.md", "to/new.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got := readString(t, v, "to/new.md"); got != "from/old.md" {
		t.Errorf("moved content = %q", got)
	}
	if _, err := os.Stat(filepath.Join(v.root, "from")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("source dir kept: %v", err)
	}

	if err := v.Move("to/new.md", "taken.md"); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("Move onto existing = %v, want fs.ErrExist", err)
	}
	if got := readString(t, v, "taken.md"); got != "taken.md" {
		t.Errorf("target overwritten: %q", got)
	}
	if err := v.Move("ghost.md", "x.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Move missing = %v, want fs.ErrNotExist", err)
	}
}

func TestPathsOutsideVault(t *testing.T) {
	v := tempVault(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow", "a/../../b.md"} {
		if _, err := v.Read(p); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("Read(%q) = %v, want ErrInvalidArgument", p, err)
		}
		if err := v.Write(p, []byte("x")); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("Write(%q) = %v, want ErrInvalidArgument", p, err)
		}
		if _, err := v.Exists(p); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("Exists(%q) = %v, want ErrInvalidArgument", p, err)
		}
	}

	if err := v.Write("a/../inside.md", []byte("ok")); err != nil {
		t.Errorf("Write with inner ..: %v", err)
	}
	if got := readString(t, v, "inside.md"); got != "ok" {
		t.Errorf("inside.md = %q", got)
	}
}

func TestNewFS_Errors(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFS(file); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestExists(t *testing.T) {
	v := tempVault(t)
	mustWrite(t, v, "dir/here.md")

	for path, want := range map[string]bool{
		"dir/here.md":    true,
		"dir/missing.md": false,
		"dir":            false,
	} {
		got, err := v.Exists(path)
		if err != nil {
			t.Fatalf("Exists(%q): %v", path, err)
		}
		if got != want {
			t.Errorf("Exists(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestIsHidden(t *testing.T) {
	tests := map[string]bool{
		".":                   false,
		"note.md":             false,
		"dir/note.md":         false,
		".git/config":         true,
		"dir/.trash/x.md":     true,
		".notebridge-tmp-123": true,
		"dir/.hidden.md":      true,
	}
	for rel, want := range tests {
		if got := IsHidden(rel); got != want {
			t.Errorf("IsHidden(%q) = %v, want %v", rel, got, want)
		}
	}
}

func TestList(t *testing.T) {
	v := tempVault(t)
	mustWrite(t, v, "a.md", "sub/b.md", "readme.txt", ".obsidian/workspace.md", "dir/.draft.md")
	if err := v.Write("same.md", []byte("a.md")); err != nil {
		t.Fatal(err)
	}

	metas, err := v.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	byPath := make(map[string]string)
	for _, m := range metas {
		byPath[m.Path] = m.Checksum
	}
	if len(byPath) != 3 {
		t.Fatalf("List = %v, want a.md, same.md, sub/b.md", byPath)
	}
	if byPath["a.md"] == "" || byPath["a.md"] != byPath["same.md"] {
		t.Errorf("checksums = %v", byPath)
	}
	if _, ok := byPath["sub/b.md"]; !ok {
		t.Errorf("nested note missing: %v", byPath)
	}

	sub, err := v.List("sub")
	if err != nil || len(sub) != 1 || sub[0].Path != "sub/b.md" {
		t.Errorf("List(sub) = %+v, %v", sub, err)
	}
}
