package memsubstrate

import (
	"testing"
	"time"
)

func TestFileStoreStoreAndGet(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	file := MemoryFile{ID: "f1", MemoryID: "m1", FileType: "code", Content: "package main", CreatedAt: time.Now().UTC()}
	if err := fs.Store(file); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := fs.Get("f1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "package main" {
		t.Fatalf("expected roundtripped content, got %q", got.Content)
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := fs.Get("missing"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFileStoreGetByMemoryAndDelete(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	err = fs.StoreBatch([]MemoryFile{
		{ID: "f1", MemoryID: "m1", Content: "a"},
		{ID: "f2", MemoryID: "m1", Content: "b"},
		{ID: "f3", MemoryID: "m2", Content: "c"},
	})
	if err != nil {
		t.Fatalf("StoreBatch: %v", err)
	}

	files, err := fs.GetByMemory("m1")
	if err != nil {
		t.Fatalf("GetByMemory: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files for m1, got %d", len(files))
	}

	n, err := fs.DeleteByMemory("m1")
	if err != nil {
		t.Fatalf("DeleteByMemory: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	files, err = fs.GetByMemory("m1")
	if err != nil {
		t.Fatalf("GetByMemory after delete: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files left for m1, got %d", len(files))
	}

	totalFiles, totalMemories := fs.Stats()
	if totalFiles != 1 || totalMemories != 1 {
		t.Fatalf("expected 1 file / 1 memory remaining, got %d/%d", totalFiles, totalMemories)
	}
}

func TestFileStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := fs.Store(MemoryFile{ID: "f1", MemoryID: "m1", Content: "persisted"}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	reloaded, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore (reload): %v", err)
	}
	got, err := reloaded.Get("f1")
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Content != "persisted" {
		t.Fatalf("expected content to survive reload, got %q", got.Content)
	}
}
