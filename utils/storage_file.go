package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore wraps the byte-level persistence of a single durable artifact.
// Stores that rewrite their whole table on every mutation depend only on
// this seam, so the strategy can later move to an incremental log or a
// real database without touching callers.
type FileStore struct {
	Path string
}

func NewFileStore(dir, name string) *FileStore {
	return &FileStore{Path: filepath.Join(dir, name)}
}

func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Read returns the file contents and whether the file exists.
// An absent file is not an error.
func (s *FileStore) Read() ([]byte, bool, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Write overwrites the file in place. Not crash-atomic: a failure
// mid-write can leave a truncated file, which the owning store must
// treat as corruption on the next load.
func (s *FileStore) Write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o644)
}

// ReplaceAtomic writes data to a temp file in the same directory and
// renames it over the target, so readers never observe a partial write.
func (s *FileStore) ReplaceAtomic(data []byte) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.Path)
}

// Quarantine moves an unreadable file aside instead of destroying it,
// and returns the quarantine path.
func (s *FileStore) Quarantine() (string, error) {
	quarantined := fmt.Sprintf("%s.corrupt-%d", s.Path, time.Now().UnixNano())
	if err := os.Rename(s.Path, quarantined); err != nil {
		return "", err
	}
	return quarantined, nil
}
