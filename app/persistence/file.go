package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/go-pkgz/lgr"
)

// FileStore keeps every key in its own <key>.json file under the directory
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore makes FileStore for dir, creating the directory if missing
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to make storage directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the value stored for key, ok is false if nothing stored yet
func (f *FileStore) Load(key string) (value []byte, ok bool, err error) {
	fname, err := f.fileName(key)
	if err != nil {
		return nil, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(fname) //nolint:gosec // file name made from validated key
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", fname, err)
	}
	return data, true, nil
}

// Save replaces the value of key. The file is written to a temp file first and renamed,
// so readers never see a partial value.
func (f *FileStore) Save(key string, value []byte) error {
	fname, err := f.fileName(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", fname, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			if rmErr := os.Remove(tmpName); rmErr != nil {
				log.Printf("[WARN] failed to remove temp file %s: %v", tmpName, rmErr)
			}
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, fname); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, fname, err)
	}
	log.Printf("[DEBUG] saved %d bytes to %s", len(value), fname)
	return nil
}

// String returns the storage description for logs
func (f *FileStore) String() string {
	return "file:" + f.dir
}

func (f *FileStore) fileName(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}
