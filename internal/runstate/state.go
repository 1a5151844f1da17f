// Package runstate records the last apply run of a patch directory so it can
// be reported or resumed.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the state file kept inside the patch directory.
const FileName = ".patchman-state.json"

// Status is the outcome of a recorded run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusAborted   Status = "aborted"
)

// Record is the summary of the last apply run.
type Record struct {
	Status     Status    `json:"status"`
	Branch     string    `json:"branch"`
	Manifest   string    `json:"manifest"`
	Applied    []string  `json:"applied"`
	Skipped    []string  `json:"skipped"`
	Failed     string    `json:"failed,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	// Retry marks a Failed commit that never reached git; a resume starts
	// with it instead of after it.
	Retry bool `json:"retry,omitempty"`
	// Tip is the branch head when the run stopped. A resume compares it with
	// the current head to tell a continued patch from a skipped one.
	Tip        string    `json:"tip,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Resumable reports whether the run stopped on a patch that can be resumed after.
func (r *Record) Resumable() bool {
	return r != nil && r.Status == StatusAborted && r.Failed != ""
}

// Store handles reading and writing run state.
type Store struct {
	dir string
}

// NewStore creates a store for the given patch directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Read loads the last run. A missing file returns nil, nil.
func (s *Store) Read() (*Record, error) {
	f, err := os.Open(s.Path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening run state: %w", err)
	}
	defer func() { _ = f.Close() }()

	var rec Record
	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding run state: %w", err)
	}
	return &rec, nil
}

// Write saves rec, replacing any previous run.
func (s *Store) Write(rec Record) (err error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	f, err := os.Create(s.Path())
	if err != nil {
		return err
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// Reset removes the state file.
func (s *Store) Reset() error {
	err := os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
