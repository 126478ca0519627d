package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rank-observer/src/logger"
	"rank-observer/src/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *models.MEnrichedTable {
	return &models.MEnrichedTable{
		Source:    "fo",
		Tick:      2,
		FetchedAt: time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC),
		Columns:   []string{"symbol", "pChange", "Rank 2", "Rank 1", "Action", "52_Weeks_High_Status", "52_Weeks_Low_Status"},
		Rows: []models.MRankedQuote{
			{
				MQuote:           models.MQuote{Symbol: "A", Fields: map[string]interface{}{"symbol": "A", "pChange": json.Number("12.50")}},
				Ranks:            map[int]int{1: 2, 2: 1},
				Action:           "sell",
				WeekHigh52Status: "No",
				WeekLow52Status:  "No",
			},
			{
				MQuote:           models.MQuote{Symbol: "N, EW", Fields: map[string]interface{}{"symbol": "N, EW", "pChange": 3.0}},
				Ranks:            map[int]int{2: 2},
				WeekHigh52Status: "Reached",
				WeekLow52Status:  "No",
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "symbol,pChange,Rank 2,Rank 1,Action,52_Weeks_High_Status,52_Weeks_Low_Status", lines[0])
	assert.Equal(t, "A,12.50,1,2,sell,No,No", lines[1])
	assert.Equal(t, `"N, EW",3,2,,,Reached,No`, lines[2])
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "1.10", FormatValue(json.Number("1.10")))
	assert.Equal(t, "0.25", FormatValue(0.25))
	assert.Equal(t, "7", FormatValue(7))
	assert.Equal(t, "2.5", FormatValue(decimal.RequireFromString("2.5")))
	assert.Equal(t, "", FormatValue(decimal.NullDecimal{}))
	assert.Equal(t, `{"k":"v"}`, FormatValue(map[string]interface{}{"k": "v"}))
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "nse_fo_data_20240301_090507.csv", FileName("", ts))
	assert.Equal(t, "ranks-2024-03.csv", FileName("ranks-%Y-%m.csv", ts))
}

func TestExporter_Export(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(models.MExportConfig{Dir: dir}, logger.NewNopLogger())

	path, err := e.Export(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fo", "nse_fo_data_20240301_090507.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "symbol,pChange,Rank 2"))
}
