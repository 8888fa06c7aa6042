// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package kvstore is a flat, string-valued key/value store persisted as a
// single YAML map. Every mutation is an atomic read-modify-write: it runs
// under an in-process mutex and, for file-backed stores, an advisory lock
// on a sibling ".lock" file, with the file re-read under that lock.
package kvstore

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Reader is the read side of a store snapshot.
type Reader interface {
	Get(key string) (string, bool)
}

// Tx is a snapshot handed to Update callbacks. Writes become visible only
// if the callback returns nil.
type Tx interface {
	Reader
	Set(key, value string)
	Delete(keys ...string)
}

// Store is the persisted key/value contract used by the lease and the
// identity settings.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
	// CompareAndSwap sets key to value only if its current value equals
	// expected. An absent key compares equal to "".
	CompareAndSwap(key, expected, value string) (bool, error)
	// Update runs fn against a consistent snapshot and persists all of its
	// writes at once, or none of them if fn returns an error.
	Update(fn func(tx Tx) error) error
	// Snapshot returns a copy of every key and value.
	Snapshot() (map[string]string, error)
}

// FileStore implements Store. A FileStore with an empty path keeps its
// data in memory only.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

var _ Store = (*FileStore)(nil)

// Open loads the store at path, creating its parent directory if needed.
// A missing file is an empty store.
func Open(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("kvstore: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	s := &FileStore{path: path}
	err := s.withLock(func() error { return nil })
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemory returns a store that is never written to disk.
func NewMemory() *FileStore {
	return &FileStore{data: map[string]string{}}
}

// Path returns the backing file, or "" for memory stores.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(key string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := s.withLock(func() error {
		v, ok = s.data[key]
		return nil
	})
	return v, ok, err
}

func (s *FileStore) Set(key, value string) error {
	return s.Update(func(tx Tx) error {
		tx.Set(key, value)
		return nil
	})
}

func (s *FileStore) Delete(keys ...string) error {
	return s.Update(func(tx Tx) error {
		tx.Delete(keys...)
		return nil
	})
}

func (s *FileStore) CompareAndSwap(key, expected, value string) (bool, error) {
	swapped := false
	err := s.Update(func(tx Tx) error {
		cur, _ := tx.Get(key)
		if cur != expected {
			return nil
		}
		tx.Set(key, value)
		swapped = true
		return nil
	})
	return swapped, err
}

func (s *FileStore) Update(fn func(tx Tx) error) error {
	return s.withLock(func() error {
		t := &tx{data: maps.Clone(s.data)}
		if err := fn(t); err != nil {
			return err
		}
		if !t.dirty {
			return nil
		}
		if err := s.persist(t.data); err != nil {
			return err
		}
		s.data = t.data
		return nil
	})
}

func (s *FileStore) Snapshot() (map[string]string, error) {
	var out map[string]string
	err := s.withLock(func() error {
		out = maps.Clone(s.data)
		return nil
	})
	return out, err
}

// withLock serializes fn against this process and, for file stores,
// against other processes sharing the file.
func (s *FileStore) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		if s.data == nil {
			s.data = map[string]string{}
		}
		return fn()
	}

	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	s.data = data
	return fn()
}

func (s *FileStore) load() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	data := map[string]string{}
	if err := yaml.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", s.path, err)
	}
	if data == nil {
		data = map[string]string{}
	}
	return data, nil
}

func (s *FileStore) persist(data map[string]string) error {
	if s.path == "" {
		return nil
	}
	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write store: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync store: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

type tx struct {
	data  map[string]string
	dirty bool
}

func (t *tx) Get(key string) (string, bool) {
	v, ok := t.data[key]
	return v, ok
}

func (t *tx) Set(key, value string) {
	if cur, ok := t.data[key]; ok && cur == value {
		return
	}
	t.data[key] = value
	t.dirty = true
}

func (t *tx) Delete(keys ...string) {
	for _, k := range keys {
		if _, ok := t.data[k]; ok {
			delete(t.data, k)
			t.dirty = true
		}
	}
}
