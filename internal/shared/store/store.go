// Package store persists a service's entire state as one JSON document on
// disk. Every operation is a whole-file read-modify-write cycle: the caller
// loads the document, mutates it in memory, and saves it back. Nothing
// guards against concurrent writers; two simultaneous requests can race and
// one save can clobber the other. That is the documented behavior of this
// demo, not an oversight.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store is a whole-file JSON document store
type Store struct {
	path string
}

// Open creates a store backed by the file at path. The file is created on
// first Save; a missing file reads as an empty document.
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole document into doc. A missing file leaves doc at its
// zero value.
func (s *Store) Load(doc any) error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store %s: %w", s.path, err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("failed to decode store %s: %w", s.path, err)
	}
	return nil
}

// Save rewrites the whole document. The write goes to a temp file first and
// is renamed into place so the document itself is never torn, but a
// concurrent Save can still silently win the race.
func (s *Store) Save(doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write store %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace store %s: %w", s.path, err)
	}
	return nil
}
