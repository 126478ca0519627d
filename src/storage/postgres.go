package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rank-observer/src/helpers"
	"rank-observer/src/logger"
	"rank-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// Each binary archives into a schema named after itself
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewDatabaseError("failed to open postgres", err)
	}

	if err := db.Ping(); err != nil {
		return helpers.NewDatabaseError("failed to reach postgres", err)
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to create schema %s", d.Schema), err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s".%s`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			tick INTEGER NOT NULL,
			fetched_at BIGINT NOT NULL
		);`, d.table("rank_snapshots")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT NOT NULL REFERENCES %s(run_id) ON DELETE CASCADE,
			symbol TEXT NOT NULL,
			position INTEGER NOT NULL,
			rank INTEGER NOT NULL,
			p_change NUMERIC,
			action TEXT,
			high_status TEXT,
			low_status TEXT,
			payload JSONB,
			PRIMARY KEY (run_id, position)
		);`, d.table("rank_rows"), d.table("rank_snapshots")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_rank_rows_symbol ON %s(symbol);`, d.table("rank_rows")),
	}

	for _, q := range queries {
		if _, err := d.DB.Exec(q); err != nil {
			return helpers.NewDatabaseError("failed to create archive tables", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveEnrichedTable(table *models.MEnrichedTable) error {
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
		fmt.Sprintf(`INSERT INTO %s (run_id, source, tick, fetched_at) VALUES ($1, $2, $3, $4)`, d.table("rank_snapshots")),
		table.RunID, table.Source, table.Tick, table.FetchedAt.Unix(),
	); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to archive run %s", table.RunID), err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (run_id, symbol, position, rank, p_change, action, high_status, low_status, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, d.table("rank_rows")))
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

func (d *PostgresDB) CleanupOldData() error {
	cutoff, ok := retentionCutoff(d.Config.Storage.RetentionDays)
	if !ok {
		return nil
	}

	// rank_rows follow through ON DELETE CASCADE
	res, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM %s WHERE fetched_at < $1`, d.table("rank_snapshots")), cutoff)
	if err != nil {
		return helpers.NewDatabaseError("cleanup of rank_snapshots failed", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		d.Logger.Info("Removed %d archived runs older than %d days", n, d.Config.Storage.RetentionDays)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
