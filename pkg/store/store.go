// Package store implements the atomic JSON document store: durable,
// crash-safe persistence of a single JSON document at a fixed path via a
// temp-file-write-fsync-rename sequence, with a backup-rename-restore-on-
// failure step so a crash mid-write never leaves the document truncated.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/debughostd/pkg/apierr"
)

// Store persists a single typed JSON document at Path, serializing writes
// under its own lock — callers never need to coordinate across Stores
// pointed at different paths, only within one.
type Store[T any] struct {
	mu   sync.RWMutex
	path string
	zero func() T
}

// New returns a Store for path. zero constructs the default empty document
// returned by Read when the file does not yet exist.
func New[T any](path string, zero func() T) (*Store[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, apierr.Wrap(apierr.KindIO, "", "create data directory", err)
	}
	return &Store[T]{path: path, zero: zero}, nil
}

// Path returns the store's file path.
func (s *Store[T]) Path() string { return s.path }

// Exists reports whether the backing file is present on disk.
func (s *Store[T]) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.path)
	return err == nil
}

// Read returns the persisted document, or the zero document if the file
// does not exist. Malformed content surfaces as a DecodeError.
func (s *Store[T]) Read() (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked()
}

func (s *Store[T]) readLocked() (T, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.zero(), nil
		}
		return s.zero(), apierr.Wrap(apierr.KindIO, "", "read store file", err)
	}
	if len(data) == 0 {
		return s.zero(), nil
	}
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return s.zero(), apierr.Wrap(apierr.KindDecode, "", "decode store file", err)
	}
	return doc, nil
}

// Write serializes doc and persists it atomically: write to path.tmp,
// rename any existing path to path.bak, rename path.tmp over path, then
// remove path.bak. On any failure the temp file is removed and, if a
// backup was created, it is renamed back to path so readers never observe
// a partial write.
func (s *Store[T]) Write(doc T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(doc)
}

func (s *Store[T]) writeLocked(doc T) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apierr.Wrap(apierr.KindDecode, "", "encode store document", err)
	}

	tmpPath := s.path + ".tmp"
	bakPath := s.path + ".bak"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return apierr.Wrap(apierr.KindIO, "", "create temp file", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return apierr.Wrap(apierr.KindIO, "", "write temp file", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return apierr.Wrap(apierr.KindIO, "", "fsync temp file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return apierr.Wrap(apierr.KindIO, "", "close temp file", err)
	}

	backedUp := false
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, bakPath); err != nil {
			_ = os.Remove(tmpPath)
			return apierr.Wrap(apierr.KindIO, "", "backup existing file", err)
		}
		backedUp = true
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		if backedUp {
			_ = os.Rename(bakPath, s.path)
		}
		return apierr.Wrap(apierr.KindIO, "", "rename temp file into place", err)
	}

	if backedUp {
		_ = os.Remove(bakPath)
	}
	return nil
}

// Update reads the current document, applies fn, and writes the result
// back, all under the store's write lock so the read-modify-write is
// atomic with respect to other callers of this Store.
func (s *Store[T]) Update(fn func(T) (T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return err
	}
	doc, err = fn(doc)
	if err != nil {
		return fmt.Errorf("update store document: %w", err)
	}
	return s.writeLocked(doc)
}
