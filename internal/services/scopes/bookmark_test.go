package scopes

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBookmarkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := FileBookmarks{}

	token, _, err := b.Create(dir)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	path, err := b.Resolve(token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if path != dir {
		t.Errorf("path = %q, want %q", path, dir)
	}
}

func TestFileBookmarkCreateRejectsMissingDir(t *testing.T) {
	b := FileBookmarks{}
	if _, _, err := b.Create(filepath.Join(t.TempDir(), "gone")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestFileBookmarkCreateRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	b := FileBookmarks{}
	if _, _, err := b.Create(file); err == nil {
		t.Error("expected error for non-directory path")
	}
}

func TestFileBookmarkResolveFailsAfterDeletion(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "granted")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	b := FileBookmarks{}
	token, _, err := b.Create(dir)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Resolve(token); err == nil {
		t.Error("expected error after directory removal")
	}
}

func TestFileBookmarkResolveRejectsGarbage(t *testing.T) {
	b := FileBookmarks{}
	for _, token := range [][]byte{
		nil,
		[]byte("not base64 !!"),
		[]byte("aGVsbG8="), // valid base64, not JSON
	} {
		if _, err := b.Resolve(token); !errors.Is(err, errBadBookmark) {
			t.Errorf("Resolve(%q) err = %v, want errBadBookmark", token, err)
		}
	}
}
