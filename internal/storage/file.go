package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kalambet/collegeai/internal/document"
)

// FileStore keeps each store as <dir>/<store>.json, a JSON object mapping
// client id to document. Writes go through a temp file and rename.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// OpenFiles returns a FileStore rooted at dir, creating it if needed.
func OpenFiles(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(store string) string {
	return filepath.Join(f.dir, store+".json")
}

// Load implements DocumentStore.
func (f *FileStore) Load(store string) (map[string]document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(store))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", store, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, store, err)
	}
	out := make(map[string]document.Document, len(raw))
	for id, v := range raw {
		doc, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out[id] = doc
	}
	return out, nil
}

// Save implements DocumentStore.
func (f *FileStore) Save(store string, docs map[string]document.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", store, err)
	}

	tmp, err := os.CreateTemp(f.dir, store+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", store, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing %s: %w", store, err)
	}
	if err := os.Rename(tmp.Name(), f.path(store)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", store, err)
	}
	return nil
}
