package dto

import "time"

// WindowStatus describes one quota window of the upstream rate limiter.
type WindowStatus struct {
	Limit       int       `json:"limit"`
	Used        int       `json:"used"`
	Remaining   int       `json:"remaining"`
	ResetAt     time.Time `json:"reset_at"`
	PercentUsed float64   `json:"percent_used"`
}

// RateLimitStatus is the full snapshot delivered to status endpoints and
// threshold observers.
type RateLimitStatus struct {
	Daily  WindowStatus `json:"daily"`
	Minute WindowStatus `json:"minute"`

	QueueSize         int        `json:"queue_size"`
	IsLimited         bool       `json:"is_limited"`
	NextAvailableSlot *time.Time `json:"next_available_slot,omitempty"`
}
