package interfaces

import (
	"context"

	"rank-observer/src/models"
)

// -----------------------------------------------------------------------------
// ISnapshotSource yields one quote snapshot per call.
// -----------------------------------------------------------------------------

type ISnapshotSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// Index returns the exchange index the source tracks.
	Index() string

	// -----------------------------------------------------------------------------

	// FetchSnapshot retrieves the current quote table.
	// A transport failure returns an error and no snapshot.
	FetchSnapshot(ctx context.Context) (*models.MSnapshot, error)
}
