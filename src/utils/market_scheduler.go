package utils

import (
	"time"

	"rank-observer/src/logger"
)

// MarketScheduler gates ticks on the exchange session.
type MarketScheduler struct {
	Calendar *TradingCalendar
	Logger   *logger.Logger
	Now      func() time.Time
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(mic string, l *logger.Logger) *MarketScheduler {
	cal := GetCalendar(mic)
	if cal.Fallback {
		l.Warning("MarketScheduler: no calendar for MIC '%s', using Mon-Fri 09:15-15:30 IST", cal.MIC)
	} else {
		l.Info("MarketScheduler: using %s calendar (%s)", cal.MIC, cal.Timezone)
	}

	return &MarketScheduler{Calendar: cal, Logger: l, Now: time.Now}
}

// -----------------------------------------------------------------------------

// MarketOpen reports whether the exchange is in session right now.
func (ms *MarketScheduler) MarketOpen() bool {
	return ms.Calendar.IsOpenOnMinute(ms.Now().UTC())
}
