// Package store persists an instance snapshot as a JSON file.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"QuantSentinel/internal/model"
)

// PendingCall is a deferred call waiting in the queue.
type PendingCall struct {
	Ticket  string        `json:"ticket"`
	At      model.Tick    `json:"at"`
	Target  model.Account `json:"target"`
	Payload model.Command `json:"payload"`
}

// Snapshot is everything needed to resume an instance.
type Snapshot struct {
	Tick         model.Tick                        `json:"tick"`
	State        model.SchedulerState              `json:"state"`
	Holdings     map[model.Account][]model.Holding `json:"holdings"`
	Reservations []model.Reservation               `json:"reservations"`
	Balances     map[model.Account]uint64          `json:"balances"`
	Pending      []PendingCall                     `json:"pending"`
	UpdatedAt    time.Time                         `json:"updated_at"`
}

// Store reads and writes snapshots at a fixed path.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the snapshot. Returns nil and no error if the file doesn't exist.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return &snap, nil
}

// Save writes the snapshot through a temporary file so a crash never leaves a
// truncated state file behind.
func (s *Store) Save(snap *Snapshot) error {
	snap.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
