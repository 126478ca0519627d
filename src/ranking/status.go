package ranking

import (
	"rank-observer/src/models"

	"github.com/shopspring/decimal"
)

// Status columns are pure functions of a single quote.
// Any invalid operand makes a comparison false.

// DeriveAction returns "sell" when the day opened at its high, "buy" when it
// opened at its low, and "" otherwise.
func DeriveAction(q models.MQuote) string {
	if equal(q.Open, q.DayHigh) {
		return models.ActionSell
	}
	if equal(q.Open, q.DayLow) {
		return models.ActionBuy
	}
	return models.ActionNone
}

// WeekHighStatus reports whether the day high touched the 52 week high.
func WeekHighStatus(q models.MQuote) string {
	if equal(q.DayHigh, q.YearHigh) {
		return models.StatusReached
	}
	return models.StatusNotReached
}

// WeekLowStatus reports whether the day low touched the 52 week low.
func WeekLowStatus(q models.MQuote) string {
	if equal(q.DayLow, q.YearLow) {
		return models.StatusReached
	}
	return models.StatusNotReached
}

func equal(a, b decimal.NullDecimal) bool {
	return a.Valid && b.Valid && a.Decimal.Equal(b.Decimal)
}
