package models

import (
	"time"

	"github.com/google/uuid"
)

// Event represents an event the platform hosts. Created and managed by the
// event CRUD surface; the engagement core only reads it.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one agenda slot of an event. WentLiveAt is set exactly when
// IsLive is true: going live stamps it, going offline clears it.
type Session struct {
	ID         uuid.UUID  `json:"id"`
	EventID    uuid.UUID  `json:"event_id"`
	EventName  string     `json:"event_name,omitempty"`
	Title      string     `json:"title"`
	Date       time.Time  `json:"date"`
	StartTime  string     `json:"start_time"`
	EndTime    string     `json:"end_time"`
	IsLive     bool       `json:"is_live"`
	WentLiveAt *time.Time `json:"went_live_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SessionSummary is the projection returned by the per-day agenda listing.
type SessionSummary struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	StartTime  string     `json:"start_time"`
	IsLive     bool       `json:"is_live"`
	WentLiveAt *time.Time `json:"went_live_at,omitempty"`
}
