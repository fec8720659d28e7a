/*
Package state persists the dedup string sets (visited videos, sent
notifications) as JSON arrays that survive restarts.
*/
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Set is an in-memory string set backed by a JSON file. The owner decides
// when to flush; the set itself never writes implicitly. Sets only grow.
type Set struct {
	path    string
	members map[string]bool
}

// Load reads the set from its file. A missing file yields an empty set; an
// unreadable or malformed file is an error so the caller can decide whether
// to start fresh.
func Load(path string) (*Set, error) {
	s := &Set{path: path, members: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file %s: %w", path, err)
	}

	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	for _, e := range entries {
		s.members[e] = true
	}
	return s, nil
}

// Contains reports membership.
func (s *Set) Contains(key string) bool {
	return s.members[key]
}

// Add inserts a key. The change is in-memory until Save is called.
func (s *Set) Add(key string) {
	s.members[key] = true
}

// Len reports the number of members.
func (s *Set) Len() int {
	return len(s.members)
}

// Save writes the whole set back to its file, creating parent directories as
// needed. Members are sorted so the file is stable across runs.
func (s *Set) Save() error {
	entries := make([]string, 0, len(s.members))
	for e := range s.members {
		entries = append(entries, e)
	}
	sort.Strings(entries)

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file %s: %w", s.path, err)
	}
	return nil
}
