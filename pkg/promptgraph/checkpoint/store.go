// Package checkpoint persists per-tick snapshots of a workflow run.
//
// The engine saves one checkpoint after every scheduler tick. A checkpoint
// holds the full node and edge state plus the set of nodes already executed,
// so a run can be inspected after the fact or replayed from any tick.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints. Implementations must be safe for concurrent use.
type Store interface {
	// Save stores the checkpoint for (runID, tick), replacing any existing one.
	Save(runID string, tick int, data []byte) error

	// Load returns the checkpoint for (runID, tick) or ErrNotFound.
	Load(runID string, tick int) ([]byte, error)

	// Latest returns the checkpoint with the highest tick for runID or ErrNotFound.
	Latest(runID string) ([]byte, error)

	// List returns checkpoint metadata for runID ordered by tick.
	// A run without checkpoints yields an empty slice.
	List(runID string) ([]Info, error)

	// DeleteRun removes all checkpoints for runID.
	DeleteRun(runID string) error

	// Close releases resources. Calling Close more than once is safe.
	Close() error
}

// Info describes a stored checkpoint without loading it.
type Info struct {
	RunID     string
	Tick      int
	Timestamp time.Time
	Size      int64
}

var (
	// ErrNotFound indicates a checkpoint does not exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
