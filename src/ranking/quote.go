package ranking

import (
	"encoding/json"
	"fmt"
	"strings"

	"rank-observer/src/models"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// NewQuote builds the typed view of one normalized record.
func NewQuote(record map[string]interface{}) models.MQuote {
	return models.MQuote{
		Symbol:   symbolOf(record[models.ColSymbol]),
		Open:     ParseDecimal(record[models.ColOpen]),
		DayHigh:  ParseDecimal(record[models.ColDayHigh]),
		DayLow:   ParseDecimal(record[models.ColDayLow]),
		YearHigh: ParseDecimal(record[models.ColYearHigh]),
		YearLow:  ParseDecimal(record[models.ColYearLow]),
		PChange:  ParseDecimal(record[models.ColPChange]),
		Fields:   record,
	}
}

// -----------------------------------------------------------------------------

// ParseDecimal converts a record cell into a decimal.
// The result is invalid for nil, blanks, "-" and anything not numeric.
func ParseDecimal(v interface{}) decimal.NullDecimal {
	switch val := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.Decimal:
		return decimal.NewNullDecimal(val)
	case decimal.NullDecimal:
		return val
	case json.Number:
		return parseDecimalString(val.String())
	case string:
		return parseDecimalString(val)
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(val))
	case float32:
		return decimal.NewNullDecimal(decimal.NewFromFloat32(val))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(val)))
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt32(val))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(val))
	default:
		return decimal.NullDecimal{}
	}
}

// -----------------------------------------------------------------------------

func parseDecimalString(s string) decimal.NullDecimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// -----------------------------------------------------------------------------

func symbolOf(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		return fmt.Sprint(val)
	}
}
