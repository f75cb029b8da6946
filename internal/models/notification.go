package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a pending push/feed notification produced by the
// engagement core and delivered by the platform's notification service.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	EventID   uuid.UUID  `json:"event_id"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
}
