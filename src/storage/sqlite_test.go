package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"rank-observer/src/logger"
	"rank-observer/src/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, retention int) *SQLiteDB {
	t.Helper()
	cfg := &models.MConfig{Storage: models.MStorageConfig{
		Enabled:       true,
		DBType:        "sqlite",
		DBPath:        filepath.Join(t.TempDir(), "archive.db"),
		RetentionDays: retention,
	}}
	db, err := NewDatabase(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { _ = db.Close() })
	return db.(*SQLiteDB)
}

func archivedTable(runID string, fetchedAt time.Time) *models.MEnrichedTable {
	return &models.MEnrichedTable{
		RunID:     runID,
		Source:    "fo",
		Tick:      2,
		FetchedAt: fetchedAt,
		Columns:   []string{"symbol", "pChange", "Rank 2", "Rank 1", "Action", "52_Weeks_High_Status", "52_Weeks_Low_Status"},
		Rows: []models.MRankedQuote{
			{
				MQuote: models.MQuote{
					Symbol:  "A",
					PChange: decimal.NewNullDecimal(decimal.RequireFromString("12.50")),
					Fields:  map[string]interface{}{"symbol": "A", "pChange": json.Number("12.50")},
				},
				Ranks:            map[int]int{1: 2, 2: 1},
				Action:           "sell",
				WeekHigh52Status: "No",
				WeekLow52Status:  "No",
			},
			{
				MQuote: models.MQuote{
					Symbol: "B",
					Fields: map[string]interface{}{"symbol": "B", "pChange": "-"},
				},
				Ranks:            map[int]int{2: 2},
				WeekHigh52Status: "Reached",
				WeekLow52Status:  "No",
			},
		},
	}
}

func TestSQLite_SaveEnrichedTable(t *testing.T) {
	db := openTestDB(t, 0)
	require.NoError(t, db.SaveEnrichedTable(archivedTable("run-1", time.Now())))

	var source string
	var tick int
	require.NoError(t, db.DB.QueryRow(`SELECT source, tick FROM rank_snapshots WHERE run_id = ?`, "run-1").Scan(&source, &tick))
	assert.Equal(t, "fo", source)
	assert.Equal(t, 2, tick)

	rows, err := db.DB.Query(`SELECT symbol, position, rank, p_change, action, payload FROM rank_rows WHERE run_id = ? ORDER BY position`, "run-1")
	require.NoError(t, err)
	defer rows.Close()

	type got struct {
		symbol   string
		position int
		rank     int
		pChange  *string
		action   string
		payload  string
	}
	var out []got
	for rows.Next() {
		var g got
		require.NoError(t, rows.Scan(&g.symbol, &g.position, &g.rank, &g.pChange, &g.action, &g.payload))
		out = append(out, g)
	}
	require.NoError(t, rows.Err())
	require.Len(t, out, 2)

	assert.Equal(t, "A", out[0].symbol)
	assert.Equal(t, 1, out[0].rank)
	require.NotNil(t, out[0].pChange)
	assert.Equal(t, "12.5", *out[0].pChange)
	assert.Equal(t, "sell", out[0].action)
	assert.JSONEq(t, `{"symbol":"A","pChange":12.50,"Rank 2":1,"Rank 1":2,"Action":"sell","52_Weeks_High_Status":"No","52_Weeks_Low_Status":"No"}`, out[0].payload)

	assert.Equal(t, "B", out[1].symbol)
	assert.Equal(t, 2, out[1].rank)
	assert.Nil(t, out[1].pChange)

	// run ids are unique
	assert.Error(t, db.SaveEnrichedTable(archivedTable("run-1", time.Now())))
}

func TestSQLite_CleanupOldData(t *testing.T) {
	db := openTestDB(t, 7)
	require.NoError(t, db.SaveEnrichedTable(archivedTable("old", time.Now().AddDate(0, 0, -30))))
	require.NoError(t, db.SaveEnrichedTable(archivedTable("new", time.Now())))

	require.NoError(t, db.CleanupOldData())

	var runs, rowCount int
	require.NoError(t, db.DB.QueryRow(`SELECT COUNT(*) FROM rank_snapshots`).Scan(&runs))
	require.NoError(t, db.DB.QueryRow(`SELECT COUNT(*) FROM rank_rows`).Scan(&rowCount))
	assert.Equal(t, 1, runs)
	assert.Equal(t, 2, rowCount)
}

func TestNewDatabase_UnknownType(t *testing.T) {
	_, err := NewDatabase(&models.MConfig{Storage: models.MStorageConfig{DBType: "oracle"}}, logger.NewNopLogger())
	assert.Error(t, err)
}
