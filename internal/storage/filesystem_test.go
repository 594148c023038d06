package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteCreatesRootAndOverwrites(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "job_20240101_000000.json", []byte("first"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if key != "job_20240101_000000.json" {
		t.Fatalf("key = %q", key)
	}
	if _, err := store.Write(ctx, key, []byte("second")); err != nil {
		t.Fatalf("overwrite error: %v", err)
	}
	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("data = %q, want second", data)
	}

	leftovers, err := filepath.Glob(filepath.Join(root, ".reelgen-tmp-*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestWriteNestedKeyAndExists(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	if store.Exists("abc123/output.mp4") {
		t.Fatalf("unexpected existing artifact")
	}
	if _, err := store.Write(context.Background(), "abc123/output.mp4", []byte{0x00}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !store.Exists("abc123/output.mp4") {
		t.Fatalf("expected artifact to exist")
	}
	if store.Exists("abc123") {
		t.Fatalf("directories are not artifacts")
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "  ", ".", "..", "../etc/passwd", "a/../../b"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("sanitizeKey(%q) should fail", key)
		}
	}
	got, err := sanitizeKey("/./videos\\abc/output.mp4")
	if err != nil {
		t.Fatalf("sanitizeKey error: %v", err)
	}
	if got != "videos/abc/output.mp4" {
		t.Fatalf("sanitizeKey = %q", got)
	}
}

func TestListFiltersAndToleratesMissingRoot(t *testing.T) {
	store, _ := NewFileStore(filepath.Join(t.TempDir(), "missing"))
	entries, err := store.List(context.Background(), "job_", ".json")
	if err != nil {
		t.Fatalf("List on missing root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}

	root := t.TempDir()
	store, _ = NewFileStore(root)
	for _, name := range []string{"job_2.json", "job_1.json", "notes.txt", "job_3.json.bak"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(root, "job_dir.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	entries, err = store.List(context.Background(), "job_", ".json")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(entries) != 2 || entries[0].Key != "job_1.json" || entries[1].Key != "job_2.json" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestReadMissingKey(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	if _, err := store.Read(context.Background(), "nope.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}
