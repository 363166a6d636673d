package domain

import "time"

// Timeframe selects how far back a leaderboard query reaches
type Timeframe string

const (
	TimeframeAll    Timeframe = "all"
	Timeframe30Days Timeframe = "30d"
	Timeframe60Days Timeframe = "60d"
	Timeframe90Days Timeframe = "90d"
	TimeframeYear   Timeframe = "1y"
)

// Timeframes lists every selector ordered from narrowest to widest window
var Timeframes = []Timeframe{Timeframe30Days, Timeframe60Days, Timeframe90Days, TimeframeYear, TimeframeAll}

// ParseTimeframe maps a query string to a Timeframe. Unrecognized values fall
// back to all-time rather than failing, matching the lenient query behavior.
func ParseTimeframe(s string) Timeframe {
	switch Timeframe(s) {
	case Timeframe30Days, Timeframe60Days, Timeframe90Days, TimeframeYear:
		return Timeframe(s)
	default:
		return TimeframeAll
	}
}

// LowerBound returns the earliest created_at included in the window, relative
// to now. ok is false for all-time, where no bound applies.
func (t Timeframe) LowerBound(now time.Time) (bound time.Time, ok bool) {
	var days int
	switch t {
	case Timeframe30Days:
		days = 30
	case Timeframe60Days:
		days = 60
	case Timeframe90Days:
		days = 90
	case TimeframeYear:
		days = 365
	default:
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -days), true
}
