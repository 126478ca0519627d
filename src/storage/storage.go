package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"rank-observer/src/interfaces"
	"rank-observer/src/logger"
	"rank-observer/src/models"
)

// archivedRow is one rank_rows record ready for insertion.
type archivedRow struct {
	Symbol     string
	Position   int
	Rank       int
	PChange    interface{} // decimal text or nil
	Action     string
	HighStatus string
	LowStatus  string
	Payload    string
}

// -----------------------------------------------------------------------------

// NewDatabase returns the archive backend selected by storage.db_type.
func NewDatabase(cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch cfg.Storage.DBType {
	case "", "sqlite":
		return NewSQLiteDB(cfg, log), nil
	case "postgres":
		return NewPostgresDB(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported db_type '%s'", cfg.Storage.DBType)
	}
}

// -----------------------------------------------------------------------------

func archiveRows(table *models.MEnrichedTable) ([]archivedRow, error) {
	records := table.Records()
	rows := make([]archivedRow, len(table.Rows))

	for i, r := range table.Rows {
		payload, err := json.Marshal(records[i])
		if err != nil {
			return nil, fmt.Errorf("failed to encode row %s: %w", r.Symbol, err)
		}

		var pChange interface{}
		if r.PChange.Valid {
			pChange = r.PChange.Decimal.String()
		}

		rank, _ := r.Rank(table.Tick)
		rows[i] = archivedRow{
			Symbol:     r.Symbol,
			Position:   i,
			Rank:       rank,
			PChange:    pChange,
			Action:     r.Action,
			HighStatus: r.WeekHigh52Status,
			LowStatus:  r.WeekLow52Status,
			Payload:    string(payload),
		}
	}
	return rows, nil
}

// -----------------------------------------------------------------------------

func retentionCutoff(days int) (int64, bool) {
	if days <= 0 {
		return 0, false
	}
	return time.Now().AddDate(0, 0, -days).Unix(), true
}
