package interfaces

import (
	"context"

	"rank-observer/src/models"
)

// -----------------------------------------------------------------------------
// IDataExchanger defines the display surface for processed tables.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// UpdateTable stores the latest table for its source without broadcasting
	UpdateTable(table *models.MEnrichedTable)

	// -----------------------------------------------------------------------------
	// UpdateMetrics stores the metrics of the last tick
	UpdateMetrics(metrics models.MProcessingMetrics)

	// -----------------------------------------------------------------------------
	// Broadcast pushes a table to connected listeners
	Broadcast(table *models.MEnrichedTable)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// IExporter writes a table as a delimited file.
// -----------------------------------------------------------------------------

type IExporter interface {
	Export(table *models.MEnrichedTable) (string, error)
}

// -----------------------------------------------------------------------------
// IPublisher pushes a table to a message bus.
// -----------------------------------------------------------------------------

type IPublisher interface {
	Publish(ctx context.Context, table *models.MEnrichedTable) error
	Close() error
}
