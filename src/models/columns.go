package models

import "fmt"

// Quote columns interpreted by the rank processor.
const (
	ColSymbol   = "symbol"
	ColOpen     = "open"
	ColDayHigh  = "dayHigh"
	ColDayLow   = "dayLow"
	ColYearHigh = "yearHigh"
	ColYearLow  = "yearLow"
	ColPChange  = "pChange"
)

// Derived columns appended to every enriched table.
const (
	ColAction         = "Action"
	ColWeekHigh52     = "52_Weeks_High_Status"
	ColWeekLow52      = "52_Weeks_Low_Status"
	RankColumnPrefix  = "Rank "
	ActionSell        = "sell"
	ActionBuy         = "buy"
	ActionNone        = ""
	StatusReached     = "Reached"
	StatusNotReached  = "No"
	DefaultFilePrefix = "nse_fo_data"
)

// DefaultColumns is the set of quote fields kept from an index response.
var DefaultColumns = []string{
	"symbol", "open", "dayHigh", "dayLow", "previousClose", "lastPrice",
	"change", "pChange", "totalTradedVolume", "totalTradedValue",
	"yearHigh", "yearLow", "perChange30d", "perChange365d",
}

// RankColumn returns the column label for the given tick.
func RankColumn(tick int) string {
	return fmt.Sprintf("%s%d", RankColumnPrefix, tick)
}
