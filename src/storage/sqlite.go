package storage

import (
	"database/sql"
	"fmt"

	"rank-observer/src/helpers"
	"rank-observer/src/logger"
	"rank-observer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) *SQLiteDB {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("failed to open sqlite", err)
	}

	if err := db.Ping(); err != nil {
		return helpers.NewDatabaseError("failed to reach sqlite", err)
	}

	// One writer at a time
	db.SetMaxOpenConns(1)
	d.DB = db

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rank_snapshots (
			run_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			tick INTEGER NOT NULL,
			fetched_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rank_rows (
			run_id TEXT NOT NULL REFERENCES rank_snapshots(run_id),
			symbol TEXT NOT NULL,
			position INTEGER NOT NULL,
			rank INTEGER NOT NULL,
			p_change TEXT,
			action TEXT,
			high_status TEXT,
			low_status TEXT,
			payload TEXT,
			PRIMARY KEY (run_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rank_rows_symbol ON rank_rows(symbol);`,
	}

	for _, q := range queries {
		if _, err := d.DB.Exec(q); err != nil {
			return helpers.NewDatabaseError("failed to create archive tables", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveEnrichedTable(table *models.MEnrichedTable) error {
	rows, err := archiveRows(table)
	if err != nil {
		return err
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO rank_snapshots (run_id, source, tick, fetched_at) VALUES (?, ?, ?, ?)`,
		table.RunID, table.Source, table.Tick, table.FetchedAt.Unix(),
	); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to archive run %s", table.RunID), err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO rank_rows (run_id, symbol, position, rank, p_change, action, high_status, low_status, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(table.RunID, r.Symbol, r.Position, r.Rank, r.PChange, r.Action, r.HighStatus, r.LowStatus, r.Payload); err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("failed to archive %s", r.Symbol), err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) CleanupOldData() error {
	cutoff, ok := retentionCutoff(d.Config.Storage.RetentionDays)
	if !ok {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM rank_rows WHERE run_id IN (SELECT run_id FROM rank_snapshots WHERE fetched_at < ?)`, cutoff); err != nil {
		return helpers.NewDatabaseError("cleanup of rank_rows failed", err)
	}
	res, err := tx.Exec(`DELETE FROM rank_snapshots WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return helpers.NewDatabaseError("cleanup of rank_snapshots failed", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		d.Logger.Info("Removed %d archived runs older than %d days", n, d.Config.Storage.RetentionDays)
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
