package utils

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// Regular NSE equity session, used when no calendar is available for the MIC.
const (
	fallbackOpenMinute  = 9*60 + 15
	fallbackCloseMinute = 15*60 + 30
)

// TradingCalendar answers session questions for one exchange.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetCalendar loads the exchange calendar for a MIC such as "xnse".
func GetCalendar(mic string) *TradingCalendar {
	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		mic = "xnse"
	}

	if cal := calendar.GetCalendar(mic); cal != nil {
		return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
	}
	return NewFallbackCalendar(mic)
}

// -----------------------------------------------------------------------------

// NewFallbackCalendar is a Mon-Fri 09:15-15:30 India Standard Time session
// without holidays.
func NewFallbackCalendar(mic string) *TradingCalendar {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+30*60)
	}
	return &TradingCalendar{MIC: mic, Fallback: true, Timezone: loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		minute := t.Hour()*60 + t.Minute()
		return minute >= fallbackOpenMinute && minute < fallbackCloseMinute
	}

	return tc.Calendar.IsOpen(t)
}
