package models

import (
	"time"

	"github.com/google/uuid"
)

// QuestionStatus is the moderation state of an audience question.
type QuestionStatus string

const (
	QuestionPending  QuestionStatus = "pending"
	QuestionApproved QuestionStatus = "approved"
	QuestionDeclined QuestionStatus = "declined"
)

// ValidQuestionStatus reports whether s is one of the three moderation states.
func ValidQuestionStatus(s QuestionStatus) bool {
	switch s {
	case QuestionPending, QuestionApproved, QuestionDeclined:
		return true
	}
	return false
}

// Question is an audience question tied to a session. New questions always
// start pending; moderators move them to approved or declined and may attach
// an edited version of the content.
type Question struct {
	ID            uuid.UUID      `json:"id"`
	SessionID     uuid.UUID      `json:"session_id"`
	UserID        uuid.UUID      `json:"user_id"`
	Content       string         `json:"content"`
	Status        QuestionStatus `json:"status"`
	EditedContent *string        `json:"edited_content,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Author        *UserSummary   `json:"author,omitempty"`
}
