package anacrolix

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

func writeEntry(t *testing.T, dir string, entry resumeEntry) {
	t.Helper()
	raw, err := json.Marshal(entry)
	if err != nil {
		t.Fatal(err)
	}
	name := entry.hashes().Best() + ".json"
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResumeStoreLoadsEntries(t *testing.T) {
	dir := t.TempDir()
	store := newResumeStore(dir)
	scope := uuid.New()

	writeEntry(t, dir, resumeEntry{V1: "aaa", Magnet: "magnet:?xt=urn:btih:aaa", Scope: scope, Paused: true})
	writeEntry(t, dir, resumeEntry{V1: "bbb", Scope: uuid.Nil})

	entries, err := store.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	byHash := map[string]resumeEntry{}
	for _, e := range entries {
		byHash[e.V1] = e
	}
	got := byHash["aaa"]
	if !got.Paused || got.Scope != scope || got.Magnet == "" {
		t.Errorf("entry = %+v", got)
	}
}

func TestResumeStoreLoadMissingDir(t *testing.T) {
	store := newResumeStore(filepath.Join(t.TempDir(), "absent"))
	entries, err := store.load()
	if err != nil || entries != nil {
		t.Errorf("load = %v, %v; want empty, nil", entries, err)
	}
}

func TestResumeStoreLoadSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	store := newResumeStore(dir)

	writeEntry(t, dir, resumeEntry{V1: "aaa", Magnet: "magnet:?xt=urn:btih:aaa"})
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Entries without any hash are dropped silently.
	writeEntry(t, dir, resumeEntry{Magnet: "magnet:?xt=urn:btih:orphan"})
	// Non-JSON files are ignored outright.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := store.load()
	if err == nil {
		t.Error("expected first decode error to surface")
	}
	if len(entries) != 1 || entries[0].V1 != "aaa" {
		t.Errorf("entries = %+v, want the one good entry", entries)
	}
}

func TestResumeStoreRemove(t *testing.T) {
	dir := t.TempDir()
	store := newResumeStore(dir)
	writeEntry(t, dir, resumeEntry{V1: "aaa", Magnet: "magnet:?xt=urn:btih:aaa"})

	hashes := domain.TorrentHashes{V1: "aaa"}
	if err := store.remove(hashes); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(store.path(hashes)); !os.IsNotExist(err) {
		t.Error("entry file still present")
	}

	// Removing an absent entry is fine.
	if err := store.remove(domain.TorrentHashes{V1: "bbb"}); err != nil {
		t.Errorf("remove absent: %v", err)
	}
}
