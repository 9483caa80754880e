package model

import "time"

// RateLimitCounter tracks consumption of the upstream API quota across the
// daily and per-minute windows. Counts never decrease inside a window except
// when a dispatched request fails, and reset to zero exactly at the window
// boundary.
type RateLimitCounter struct {
	DailyCount   int       `json:"daily_count"`
	DailyResetAt time.Time `json:"daily_reset_at"` // next UTC midnight

	MinuteCount   int       `json:"minute_count"`
	MinuteResetAt time.Time `json:"minute_reset_at"` // next minute boundary

	// Recent request times, pruned to the trailing 60-second window.
	RequestTimestamps []time.Time `json:"request_timestamps"`
}
