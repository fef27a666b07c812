// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package history persists the session record list backing the
// `history:save`/`history:load` contract in spec.md §6.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// MaxEntries is the cap on stored sessions; the oldest entries beyond
// this are dropped on save.
const MaxEntries = 100

// DefaultPath returns $HOME/.depssmuggler/history.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".depssmuggler", "history.json"), nil
}

// Store is a JSON-file-backed session history. Entries are kept as
// json.RawMessage rather than a narrowed struct so arbitrary
// caller-supplied session shapes round-trip losslessly, per spec.md §8's
// "history save→load" invariant.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore opens a Store backed by path, creating its parent directory
// if necessary.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating history directory")
	}
	return &Store{path: path}, nil
}

// Load returns the persisted session list, newest first. A missing file
// is treated as an empty history, not an error.
func (s *Store) Load() ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Save prepends entry to the history, truncates to MaxEntries, and
// atomically rewrites the file.
func (s *Store) Save(entry json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.readLocked()
	if err != nil {
		return err
	}
	entries := append([]json.RawMessage{entry}, existing...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "encoding history")
	}
	return writeAtomic(s.path, b)
}

func (s *Store) readLocked() ([]json.RawMessage, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "reading history")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, errors.Wrap(err, "parsing history")
	}
	return entries, nil
}

// writeAtomic mirrors internal/cache's disk-write idiom: stage to a temp
// file in the same directory, then rename, so a crash mid-write never
// leaves a readable partial history.json.
func writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
