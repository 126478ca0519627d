package interfaces

import "rank-observer/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the enriched table archive.
// The archive is write-only: nothing is read back into rank history.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveEnrichedTable archives one processed snapshot.
	SaveEnrichedTable(table *models.MEnrichedTable) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
