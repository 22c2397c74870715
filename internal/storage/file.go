package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists all keys in a single JSON object on disk. Reads are
// served from the in-memory copy loaded at open time.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// OpenFileStore loads path, tolerating a missing or corrupt file by starting
// empty.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}

	fs := &FileStore{path: path, values: make(map[string]json.RawMessage)}

	payload, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &fs.values); err != nil {
			fs.values = make(map[string]json.RawMessage)
		}
	}
	return fs, nil
}

// Get returns the value stored under key.
func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	value, ok := f.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set stores value and rewrites the file atomically.
func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %s is not valid json", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[key] = append(json.RawMessage(nil), value...)
	return f.flushLocked()
}

func (f *FileStore) flushLocked() error {
	payload, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	dir := filepath.Dir(f.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, ".coinwatch-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

var _ KVStore = (*FileStore)(nil)
