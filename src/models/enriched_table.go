package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// MEnrichedTable is the processed snapshot: rows sorted by pChange descending,
// carrying every known Rank column plus the derived status columns.
type MEnrichedTable struct {
	RunID     string
	Source    string
	Tick      int
	FetchedAt time.Time
	Columns   []string
	Rows      []MRankedQuote
}

// -----------------------------------------------------------------------------

// Value returns the cell for a row and column, nil when unknown.
func (t *MEnrichedTable) Value(row int, column string) interface{} {
	q := t.Rows[row]
	switch column {
	case ColAction:
		return q.Action
	case ColWeekHigh52:
		return q.WeekHigh52Status
	case ColWeekLow52:
		return q.WeekLow52Status
	}

	if tick, ok := ParseRankColumn(column); ok {
		if r, ok := q.Ranks[tick]; ok {
			return r
		}
		return nil
	}

	return q.Fields[column]
}

// -----------------------------------------------------------------------------

// Records materializes the table as one map per row keyed by column.
func (t *MEnrichedTable) Records() []map[string]interface{} {
	out := make([]map[string]interface{}, len(t.Rows))
	for i := range t.Rows {
		rec := make(map[string]interface{}, len(t.Columns))
		for _, c := range t.Columns {
			rec[c] = t.Value(i, c)
		}
		out[i] = rec
	}
	return out
}

// -----------------------------------------------------------------------------

// Find returns the row for a symbol.
func (t *MEnrichedTable) Find(symbol string) (MRankedQuote, bool) {
	for _, r := range t.Rows {
		if r.Symbol == symbol {
			return r, true
		}
	}
	return MRankedQuote{}, false
}

// -----------------------------------------------------------------------------

// RankColumns returns the Rank columns present in the table.
func (t *MEnrichedTable) RankColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if _, ok := ParseRankColumn(c); ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// -----------------------------------------------------------------------------

// Clone returns a deep copy safe to hand to another goroutine.
func (t *MEnrichedTable) Clone() *MEnrichedTable {
	if t == nil {
		return nil
	}
	out := *t
	out.Columns = append([]string(nil), t.Columns...)
	out.Rows = make([]MRankedQuote, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = r.clone()
	}
	return &out
}

// -----------------------------------------------------------------------------

// FilterSymbols returns a copy holding only the requested symbols.
func (t *MEnrichedTable) FilterSymbols(symbols []string) *MEnrichedTable {
	out := t.Clone()
	if len(symbols) == 0 {
		return out
	}

	want := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		want[s] = struct{}{}
	}

	rows := out.Rows[:0]
	for _, r := range out.Rows {
		if _, ok := want[r.Symbol]; ok {
			rows = append(rows, r)
		}
	}
	out.Rows = rows
	return out
}

// -----------------------------------------------------------------------------

type enrichedTableJSON struct {
	RunID     string                   `json:"run_id"`
	Source    string                   `json:"source"`
	Tick      int                      `json:"tick"`
	FetchedAt time.Time                `json:"fetched_at"`
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
}

// MarshalJSON renders rows as column keyed records.
func (t *MEnrichedTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(enrichedTableJSON{
		RunID:     t.RunID,
		Source:    t.Source,
		Tick:      t.Tick,
		FetchedAt: t.FetchedAt,
		Columns:   t.Columns,
		Rows:      t.Records(),
	})
}

// -----------------------------------------------------------------------------

// ParseRankColumn extracts the tick from a "Rank k" label.
func ParseRankColumn(column string) (int, bool) {
	if !strings.HasPrefix(column, RankColumnPrefix) {
		return 0, false
	}
	tick, err := strconv.Atoi(column[len(RankColumnPrefix):])
	if err != nil || tick <= 0 {
		return 0, false
	}
	return tick, true
}
