// Package checkpoint provides persistent checkpoint storage for inspection
// and recovery. The executor produces checkpoints; where they live (memory,
// file, database) is the store implementation's concern.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints behind a narrow save/load contract.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint for a run at a specific version.
	// Versions are written once; saving an existing version overwrites it.
	Save(runID string, version int, data []byte) error

	// Load retrieves the checkpoint at a version.
	// Returns ErrNotFound if it doesn't exist.
	Load(runID string, version int) ([]byte, error)

	// Latest returns the highest version saved for a run.
	// Returns ErrNotFound if the run has no checkpoints.
	Latest(runID string) (int, error)

	// List returns metadata for all of a run's checkpoints, ordered by
	// version. Returns an empty slice (not an error) for an unknown run.
	List(runID string) ([]Info, error)

	// DeleteRun removes all checkpoints for a run.
	// Returns nil if the run has no checkpoints.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides checkpoint metadata without loading the full state.
type Info struct {
	RunID     string
	Version   int
	Step      int
	CreatedAt time.Time
	Size      int64
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
