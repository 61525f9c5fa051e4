// Package overlay keeps the stream overlay's status file in sync: win, draw
// and loss counters plus the URL of the game currently on display.
package overlay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// State is the JSON document the overlay renders.
type State struct {
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
	URL    string `json:"url"`
}

// Store reads and writes the overlay state file. The publisher is the only
// writer; the status endpoint reads through Load.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store over the state file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Load reads and parses the state file.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return State{}, fmt.Errorf("read overlay file: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("parse overlay file: %w", err)
	}
	return st, nil
}

// Save writes the state file, creating parent directories as needed.
func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode overlay state: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create overlay dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write overlay file: %w", err)
	}
	return nil
}
