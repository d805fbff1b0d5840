// Package checkpoint persists the committed logical length of a vault.
//
// The checkpoint is the sole source of truth for what readers may see:
// the data blob is page-aligned and may hold stale bytes past the logical
// length, so a reader must never scan beyond the checkpointed value.
package checkpoint

import (
	"context"
	"errors"
)

// ErrNonMonotonic is returned by Update when the new length is below the
// stored one. A single writer never regresses the committed length, so a
// lower value indicates a second writer or a programming error.
var ErrNonMonotonic = errors.New("checkpoint: length update is not monotonic")

// Checkpoint stores the committed logical length of one vault.
type Checkpoint interface {
	// Read returns the committed length. A missing checkpoint object
	// reads as 0.
	Read(ctx context.Context) (int64, error)

	// GetOrInit creates the checkpoint object if missing and returns the
	// committed length. Writer-only.
	GetOrInit(ctx context.Context) (int64, error)

	// Update publishes a new committed length. Writer-only; fails with
	// ErrNonMonotonic if n is below the stored value.
	Update(ctx context.Context, n int64) error
}
