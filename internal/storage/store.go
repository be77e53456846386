package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("execution record not found")

// Store is durable keyed storage for execution records. Implementations only
// persist what they are given; all state-machine logic lives in the execution
// pipeline. Insert followed by Get must observe the inserted record (callers
// poll between the initial Pending write and the terminal update).
type Store interface {
	// Insert stores a new record. The id must not already exist.
	Insert(ctx context.Context, rec *ExecutionRecord) error

	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*ExecutionRecord, error)

	// Update replaces the stored record with the same id, or ErrNotFound.
	Update(ctx context.Context, rec *ExecutionRecord) error

	// ListBySubmitter returns all records for a submitter identity. Order is
	// implementation-defined; an unknown submitter yields an empty slice.
	ListBySubmitter(ctx context.Context, submitterID string) ([]ExecutionRecord, error)

	// ListStalePending returns Pending records created before the cutoff,
	// for reconciliation of rows whose in-flight update was lost.
	ListStalePending(ctx context.Context, before time.Time) ([]ExecutionRecord, error)
}
