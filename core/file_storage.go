package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStorage persists each key as one JSON document in a directory.
// It is the durable single-profile backend: state survives restarts the
// way browser-profile storage survives reloads. Writes go through a
// temp file and rename so a crash mid-write never leaves a torn
// document behind.
type FileStorage struct {
	mu     sync.RWMutex
	dir    string
	logger Logger
}

// NewFileStorage creates a file-backed storage rooted at dir,
// creating the directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required: %w", ErrMissingConfiguration)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &FileStorage{
		dir:    dir,
		logger: &NoOpLogger{},
	}, nil
}

// SetLogger configures the logger for this storage
func (f *FileStorage) SetLogger(logger Logger) {
	if logger != nil {
		f.logger = logger
	}
}

// path maps a key to a file name. Keys are sanitized so a hostile key
// cannot escape the storage directory.
func (f *FileStorage) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(f.dir, safe+".json")
}

// Load reads a stored document; absent keys yield (nil, nil)
func (f *FileStorage) Load(ctx context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		f.logger.Error("Storage read failed", map[string]interface{}{
			"operation": "storage_load",
			"key":       key,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Save writes a document atomically via temp file + rename
func (f *FileStorage) Save(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.path(key)
	tmp, err := os.CreateTemp(f.dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}

	f.logger.Debug("Storage save", map[string]interface{}{
		"operation":  "storage_save",
		"key":        key,
		"value_size": len(value),
	})
	return nil
}

// Delete removes a document; deleting an absent key is a no-op
func (f *FileStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key holds a document
func (f *FileStorage) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, err := os.Stat(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
