package models

import (
	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleAttendee  Role = "attendee"
)

// UserSummary is the minimal author/responder profile attached to questions
// and poll responses. Full user records are owned by the platform's account
// service.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
}
