package models

import (
	"time"
)

// PollRecord captures the outcome of a single poll tick.
type PollRecord struct {
	CheckedAt  time.Time `json:"checked_at"`
	OK         bool      `json:"ok"`
	Fetched    int       `json:"fetched"`
	New        []string  `json:"new,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// Detection stores a batch of domains that appeared in the same poll.
type Detection struct {
	DetectedAt time.Time `json:"detected_at"`
	Domains    []string  `json:"domains"`
}

// Notification is a title/body pair handed to notifiers.
type Notification struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}
