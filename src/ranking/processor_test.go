package ranking

import (
	"errors"
	"testing"
	"time"

	"rank-observer/src/helpers"
	"rank-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(symbol string, pChange, open, dayHigh, dayLow, yearHigh, yearLow interface{}) map[string]interface{} {
	return map[string]interface{}{
		"symbol":   symbol,
		"pChange":  pChange,
		"open":     open,
		"dayHigh":  dayHigh,
		"dayLow":   dayLow,
		"yearHigh": yearHigh,
		"yearLow":  yearLow,
	}
}

func snapshot(records ...map[string]interface{}) *models.MSnapshot {
	return models.NewSnapshot("fo", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), records)
}

func symbols(t *models.MEnrichedTable) []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Symbol
	}
	return out
}

func rankOf(t *testing.T, table *models.MEnrichedTable, symbol string, tick int) interface{} {
	t.Helper()
	for i, r := range table.Rows {
		if r.Symbol == symbol {
			return table.Value(i, models.RankColumn(tick))
		}
	}
	t.Fatalf("symbol %s not in table", symbol)
	return nil
}

// -----------------------------------------------------------------------------

func TestProcess_TwoTicksReorder(t *testing.T) {
	p := NewProcessor(nil)

	first, err := p.Process(snapshot(
		row("A", 5, 10, 10, 9, 20, 5),
		row("B", 10, 8, 8, 7, 8, 2),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, symbols(first))
	assert.Equal(t, 1, rankOf(t, first, "B", 1))
	assert.Equal(t, 2, rankOf(t, first, "A", 1))
	assert.Equal(t, "sell", first.Rows[0].Action)
	assert.Equal(t, "Reached", first.Rows[0].WeekHigh52Status)
	assert.Equal(t, "sell", first.Rows[1].Action)
	assert.Equal(t, "No", first.Rows[1].WeekHigh52Status)

	second, err := p.Process(snapshot(
		row("A", 12, 10, 10, 9, 20, 5),
		row("B", 3, 8, 8, 7, 8, 2),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, symbols(second))
	assert.Equal(t, 1, rankOf(t, second, "A", 2))
	assert.Equal(t, 2, rankOf(t, second, "A", 1))
	assert.Equal(t, 2, rankOf(t, second, "B", 2))
	assert.Equal(t, 1, rankOf(t, second, "B", 1))
	assert.Equal(t, 2, p.Tick())
}

// -----------------------------------------------------------------------------

func TestProcess_MissingColumnsLeavesStateUntouched(t *testing.T) {
	p := NewProcessor(nil)
	_, err := p.Process(snapshot(row("A", 1, 1, 2, 1, 3, 1)))
	require.NoError(t, err)

	for _, drop := range []string{"symbol", "open", "dayHigh", "dayLow", "yearHigh", "yearLow", "pChange"} {
		rec := row("A", 1, 1, 2, 1, 3, 1)
		delete(rec, drop)

		_, err := p.Process(snapshot(rec))
		var schemaErr *helpers.SchemaError
		require.True(t, errors.As(err, &schemaErr), "dropping %s", drop)
		assert.Equal(t, []string{drop}, schemaErr.Missing)
		assert.Equal(t, 1, p.Tick())
	}

	// History did not move: the next tick is 2 and carries only Rank 1 from before
	table, err := p.Process(snapshot(row("A", 1, 1, 2, 1, 3, 1)))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Tick)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, table.Rows[0].Ranks)
}

func TestProcess_EmptySnapshotFails(t *testing.T) {
	p := NewProcessor(nil)

	_, err := p.Process(&models.MSnapshot{})
	var schemaErr *helpers.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, RequiredColumns, schemaErr.Missing)
	assert.Contains(t, err.Error(), "symbol, open, dayHigh")

	_, err = p.Process(nil)
	require.Error(t, err)
	assert.Equal(t, 0, p.Tick())
}

// -----------------------------------------------------------------------------

func TestProcess_RanksArePermutation(t *testing.T) {
	p := NewProcessor(nil)
	table, err := p.Process(snapshot(
		row("A", 1.5, 1, 1, 1, 1, 1),
		row("B", -2, 1, 1, 1, 1, 1),
		row("C", 7, 1, 1, 1, 1, 1),
		row("D", 1.5, 1, 1, 1, 1, 1),
		row("E", 0, 1, 1, 1, 1, 1),
	))
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, r := range table.Rows {
		rank, ok := r.Rank(1)
		require.True(t, ok)
		assert.False(t, seen[rank])
		seen[rank] = true
	}
	assert.Len(t, seen, 5)
	for k := 1; k <= 5; k++ {
		assert.True(t, seen[k])
	}
}

func TestProcess_DescendingAndStable(t *testing.T) {
	p := NewProcessor(nil)
	table, err := p.Process(snapshot(
		row("A", "1.50", 1, 1, 1, 1, 1),
		row("B", 3, 1, 1, 1, 1, 1),
		row("C", 1.5, 1, 1, 1, 1, 1),
		row("D", -4, 1, 1, 1, 1, 1),
		row("E", "1.5", 1, 1, 1, 1, 1),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C", "E", "D"}, symbols(table))
}

func TestProcess_InvalidPChangeSortsLast(t *testing.T) {
	p := NewProcessor(nil)
	table, err := p.Process(snapshot(
		row("A", "-", 1, 1, 1, 1, 1),
		row("B", 2, 1, 1, 1, 1, 1),
		row("C", nil, 1, 1, 1, 1, 1),
		row("D", -9, 1, 1, 1, 1, 1),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "D", "A", "C"}, symbols(table))
	assert.Equal(t, 4, rankOf(t, table, "C", 1))
}

// -----------------------------------------------------------------------------

func TestProcess_HistoryAccumulates(t *testing.T) {
	p := NewProcessor(nil)
	want := map[int]int{}

	var table *models.MEnrichedTable
	for n := 1; n <= 5; n++ {
		var err error
		// X alternates between leading and trailing
		x := float64(n % 2 * 10)
		table, err = p.Process(snapshot(
			row("X", x, 1, 1, 1, 1, 1),
			row("Y", 5, 1, 1, 1, 1, 1),
		))
		require.NoError(t, err)
		r, _ := table.Find("X")
		want[n], _ = r.Rank(n)
	}

	assert.Equal(t, []string{"Rank 5", "Rank 4", "Rank 3", "Rank 2", "Rank 1"}, table.RankColumns())
	for n := 1; n <= 5; n++ {
		assert.Equal(t, want[n], rankOf(t, table, "X", n))
	}
	assert.Equal(t, 1, want[1])
	assert.Equal(t, 2, want[2])
}

func TestProcess_HistoryOmission(t *testing.T) {
	p := NewProcessor(nil)

	for i := 0; i < 2; i++ {
		_, err := p.Process(snapshot(
			row("X", 1, 1, 1, 1, 1, 1),
			row("Y", 2, 1, 1, 1, 1, 1),
		))
		require.NoError(t, err)
	}

	third, err := p.Process(snapshot(row("X", 1, 1, 1, 1, 1, 1)))
	require.NoError(t, err)
	_, found := third.Find("Y")
	assert.False(t, found)

	fourth, err := p.Process(snapshot(
		row("X", 1, 1, 1, 1, 1, 1),
		row("Y", 2, 1, 1, 1, 1, 1),
	))
	require.NoError(t, err)
	assert.Nil(t, rankOf(t, fourth, "Y", 3))
	assert.Equal(t, 1, rankOf(t, fourth, "Y", 4))
	assert.Equal(t, 1, rankOf(t, fourth, "X", 3))

	// Y dropped out on tick 3, so its earlier ranks are gone too
	y, found := fourth.Find("Y")
	require.True(t, found)
	assert.Equal(t, map[int]int{4: 1}, y.Ranks)
	assert.Nil(t, rankOf(t, fourth, "Y", 1))
	assert.Nil(t, rankOf(t, fourth, "Y", 2))

	x, _ := fourth.Find("X")
	assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 1, 4: 2}, x.Ranks)
}

func TestProcess_NewSymbolHasUnknownPast(t *testing.T) {
	p := NewProcessor(nil)
	_, err := p.Process(snapshot(row("X", 1, 1, 1, 1, 1, 1)))
	require.NoError(t, err)

	table, err := p.Process(snapshot(
		row("X", 1, 1, 1, 1, 1, 1),
		row("Z", 9, 1, 1, 1, 1, 1),
	))
	require.NoError(t, err)
	assert.Nil(t, rankOf(t, table, "Z", 1))
	assert.Equal(t, 1, rankOf(t, table, "Z", 2))
}

// -----------------------------------------------------------------------------

func TestProcess_ColumnLayout(t *testing.T) {
	p := NewProcessor(nil)
	rec := row("A", 1, 1, 1, 1, 1, 1)
	rec["lastPrice"] = 101.5

	snap := &models.MSnapshot{
		Source:  "fo",
		Columns: []string{"symbol", "open", "dayHigh", "dayLow", "lastPrice", "pChange", "yearHigh", "yearLow"},
		Records: []map[string]interface{}{rec},
	}
	_, err := p.Process(snap)
	require.NoError(t, err)
	table, err := p.Process(snap)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"symbol", "open", "dayHigh", "dayLow", "lastPrice", "pChange", "yearHigh", "yearLow",
		"Rank 2", "Rank 1", "Action", "52_Weeks_High_Status", "52_Weeks_Low_Status",
	}, table.Columns)
	assert.Equal(t, 101.5, table.Value(0, "lastPrice"))
}

func TestProcess_TrimsColumnLabels(t *testing.T) {
	p := NewProcessor(nil)
	rec := map[string]interface{}{
		" symbol ": "A", "open ": 10, " dayHigh": 10, "dayLow": 9,
		"yearHigh": 12, "\tyearLow": 9, "pChange\n": 1,
	}
	table, err := p.Process(models.NewSnapshot("fo", time.Time{}, []map[string]interface{}{rec}))
	require.NoError(t, err)
	assert.Equal(t, "A", table.Rows[0].Symbol)
	assert.Equal(t, "sell", table.Rows[0].Action)
	assert.Equal(t, "Reached", table.Rows[0].WeekLow52Status)

	// The caller's record keeps its original keys
	_, ok := rec[" symbol "]
	assert.True(t, ok)
}

func TestProcess_DoesNotMutateInput(t *testing.T) {
	p := NewProcessor(nil)
	records := []map[string]interface{}{
		row("A", 1, 1, 1, 1, 1, 1),
		row("B", 2, 1, 1, 1, 1, 1),
	}
	snap := snapshot(records...)
	cols := append([]string(nil), snap.Columns...)

	_, err := p.Process(snap)
	require.NoError(t, err)

	assert.Equal(t, cols, snap.Columns)
	assert.Equal(t, "A", snap.Records[0]["symbol"])
	assert.Len(t, snap.Records[0], 7)
}

func TestProcess_DerivedInputColumnsAreReplaced(t *testing.T) {
	p := NewProcessor(nil)
	rec := row("A", 1, 5, 6, 5, 9, 1)
	rec["Action"] = "stale"
	rec["Rank 7"] = 3

	table, err := p.Process(snapshot(rec))
	require.NoError(t, err)
	assert.Equal(t, "buy", table.Rows[0].Action)
	assert.NotContains(t, table.Columns, "Rank 7")
}

func TestProcess_DuplicateSymbols(t *testing.T) {
	p := NewProcessor(nil)
	table, err := p.Process(snapshot(
		row("A", 1, 1, 1, 1, 1, 1),
		row("A", 5, 1, 1, 1, 1, 1),
	))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 1, table.Value(0, "Rank 1"))
	assert.Equal(t, 2, table.Value(1, "Rank 1"))

	next, err := p.Process(snapshot(row("A", 1, 1, 1, 1, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, 1, rankOf(t, next, "A", 1))
}

// -----------------------------------------------------------------------------

func TestStatusDerivation(t *testing.T) {
	cases := []struct {
		name                  string
		rec                   map[string]interface{}
		action, high52, low52 string
	}{
		{"open at high", row("X", 0, 100, 100, 90, 120, 80), "sell", "No", "No"},
		{"open at low", row("X", 0, 90, 100, 90, 100, 90), "buy", "Reached", "Reached"},
		{"open inside range", row("X", 0, 95, 100, 90, 120, 80), "", "No", "No"},
		{"open equals both", row("X", 0, 100, 100, 100, 130, 70), "sell", "No", "No"},
		{"decimal text equality", row("X", 0, "100.00", 100, "90", "100.0", 80), "sell", "Reached", "No"},
		{"missing values", row("X", 0, nil, nil, "-", "", nil), "", "No", "No"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := NewQuote(tc.rec)
			assert.Equal(t, tc.action, DeriveAction(q))
			assert.Equal(t, tc.high52, WeekHighStatus(q))
			assert.Equal(t, tc.low52, WeekLowStatus(q))
		})
	}
}
