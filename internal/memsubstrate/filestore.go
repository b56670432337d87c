package memsubstrate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/memochater/core/internal/kind"
)

// fileIndex tracks file id -> filename and memory id -> file ids, persisted
// alongside the blobs themselves.
type fileIndex struct {
	Files       map[string]string   `json:"files"`
	MemoryFiles map[string][]string `json:"memory_files"`
}

// FileStore persists MemoryFile blobs as individual JSON files under
// storageDir/files, with a single index.json tracking the id mappings.
type FileStore struct {
	mu         sync.Mutex
	storageDir string
	index      fileIndex
}

// NewFileStore ensures storageDir/files exists and loads (or creates) the
// index file.
func NewFileStore(storageDir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(storageDir, "files"), 0o755); err != nil {
		return nil, kind.New(kind.Memory, "NewFileStore", err)
	}
	fs := &FileStore{
		storageDir: storageDir,
		index:      fileIndex{Files: map[string]string{}, MemoryFiles: map[string][]string{}},
	}
	indexPath := filepath.Join(storageDir, "index.json")
	raw, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, kind.New(kind.Memory, "NewFileStore", err)
	}
	if err := json.Unmarshal(raw, &fs.index); err != nil {
		return nil, kind.New(kind.Memory, "NewFileStore", err)
	}
	return fs, nil
}

func (fs *FileStore) saveIndexLocked() error {
	raw, err := json.MarshalIndent(fs.index, "", "  ")
	if err != nil {
		return kind.New(kind.Memory, "saveIndex", err)
	}
	return os.WriteFile(filepath.Join(fs.storageDir, "index.json"), raw, 0o644)
}

func (fs *FileStore) blobPath(id string) string {
	return filepath.Join(fs.storageDir, "files", id+".json")
}

// Store writes one MemoryFile and updates the index.
func (fs *FileStore) Store(file MemoryFile) error {
	return fs.StoreBatch([]MemoryFile{file})
}

// StoreBatch writes several MemoryFile blobs and updates the index once.
func (fs *FileStore) StoreBatch(files []MemoryFile) error {
	if len(files) == 0 {
		return nil
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, f := range files {
		raw, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return kind.New(kind.Memory, "StoreBatch", err)
		}
		if err := os.WriteFile(fs.blobPath(f.ID), raw, 0o644); err != nil {
			return kind.New(kind.Memory, "StoreBatch", err)
		}
		fs.index.Files[f.ID] = f.ID + ".json"
		fs.index.MemoryFiles[f.MemoryID] = append(fs.index.MemoryFiles[f.MemoryID], f.ID)
	}
	return fs.saveIndexLocked()
}

// Get reads one blob by id.
func (fs *FileStore) Get(id string) (MemoryFile, error) {
	fs.mu.Lock()
	_, ok := fs.index.Files[id]
	fs.mu.Unlock()
	if !ok {
		return MemoryFile{}, kind.New(kind.Memory, "Get", errFileNotFound(id))
	}
	raw, err := os.ReadFile(fs.blobPath(id))
	if err != nil {
		return MemoryFile{}, kind.New(kind.Memory, "Get", err)
	}
	var f MemoryFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return MemoryFile{}, kind.New(kind.Memory, "Get", err)
	}
	return f, nil
}

// GetByMemory returns every blob attached to memoryID, skipping any that
// have gone missing from disk.
func (fs *FileStore) GetByMemory(memoryID string) ([]MemoryFile, error) {
	fs.mu.Lock()
	ids := append([]string(nil), fs.index.MemoryFiles[memoryID]...)
	fs.mu.Unlock()
	out := make([]MemoryFile, 0, len(ids))
	for _, id := range ids {
		f, err := fs.Get(id)
		if err != nil {
			if kind.Is(err, kind.Memory) {
				continue
			}
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// DeleteByMemory removes every blob attached to memoryID and returns how
// many were removed.
func (fs *FileStore) DeleteByMemory(memoryID string) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ids := fs.index.MemoryFiles[memoryID]
	delete(fs.index.MemoryFiles, memoryID)
	for _, id := range ids {
		if name, ok := fs.index.Files[id]; ok {
			_ = os.Remove(filepath.Join(fs.storageDir, "files", name))
			delete(fs.index.Files, id)
		}
	}
	if err := fs.saveIndexLocked(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Stats reports index sizes.
func (fs *FileStore) Stats() (totalFiles, totalMemories int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.index.Files), len(fs.index.MemoryFiles)
}

type fileNotFoundError struct{ id string }

func (e *fileNotFoundError) Error() string { return "file not found: " + e.id }

func errFileNotFound(id string) error { return &fileNotFoundError{id: id} }
