// Package prefs persists small daemon preferences, such as the recognition
// permission grant, in a YAML file.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// KeyEnabled persists the user's enable/disable choice across restarts.
const KeyEnabled = "wake.enabled"

// Store is a YAML-file-backed key-value store. Every write replaces the
// file atomically; the file stays human-editable.
type Store struct {
	mu   sync.Mutex
	path string
	vals map[string]string
}

// Open loads the store at path, creating the parent directory. A missing
// file yields an empty store; the file appears on first Set.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prefs: create directory: %w", err)
	}

	s := &Store{path: path, vals: map[string]string{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prefs: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s.vals); err != nil {
		return nil, fmt.Errorf("prefs: parse %s: %w", path, err)
	}
	if s.vals == nil {
		s.vals = map[string]string{}
	}
	return s, nil
}

// Get returns the value for key and whether it is present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vals[key]
	return v, ok
}

// Set stores key=value and persists the file.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = value
	return s.flush()
}

// Delete removes key and persists the file. Deleting an absent key is a
// no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vals[key]; !ok {
		return nil
	}
	delete(s.vals, key)
	return s.flush()
}

// GetBool reads a boolean preference, returning fallback when the key is
// absent or not a recognized boolean.
func (s *Store) GetBool(key string, fallback bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return fallback
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	return fallback
}

// SetBool stores a boolean preference.
func (s *Store) SetBool(key string, value bool) error {
	if value {
		return s.Set(key, "true")
	}
	return s.Set(key, "false")
}

// flush writes the store to disk via a temp file and rename, so a crash
// mid-write cannot leave a truncated file. Caller holds s.mu.
func (s *Store) flush() error {
	data, err := yaml.Marshal(s.vals)
	if err != nil {
		return fmt.Errorf("prefs: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("prefs: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("prefs: replace %s: %w", s.path, err)
	}
	return nil
}
