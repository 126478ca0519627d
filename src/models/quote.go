package models

import "github.com/shopspring/decimal"

// MQuote is the typed view of one snapshot record.
// A decimal field is invalid when the value was absent or not numeric.
type MQuote struct {
	Symbol   string
	Open     decimal.NullDecimal
	DayHigh  decimal.NullDecimal
	DayLow   decimal.NullDecimal
	YearHigh decimal.NullDecimal
	YearLow  decimal.NullDecimal
	PChange  decimal.NullDecimal
	Fields   map[string]interface{} // normalized record, passed through untouched
}

// MRankedQuote is a quote enriched with its rank history and status columns.
type MRankedQuote struct {
	MQuote
	Ranks            map[int]int // tick -> rank, missing tick means unknown
	Action           string
	WeekHigh52Status string
	WeekLow52Status  string
}

// -----------------------------------------------------------------------------

// Rank returns the rank held on the given tick.
func (q MRankedQuote) Rank(tick int) (int, bool) {
	r, ok := q.Ranks[tick]
	return r, ok
}

// -----------------------------------------------------------------------------

func (q MRankedQuote) clone() MRankedQuote {
	out := q
	out.Ranks = make(map[int]int, len(q.Ranks))
	for k, v := range q.Ranks {
		out.Ranks[k] = v
	}
	out.Fields = make(map[string]interface{}, len(q.Fields))
	for k, v := range q.Fields {
		out.Fields[k] = v
	}
	return out
}
