package models

import (
	"time"

	"github.com/google/uuid"
)

// AnswerType is how a poll expects attendees to answer.
type AnswerType string

const (
	AnswerSingle   AnswerType = "single"
	AnswerMultiple AnswerType = "multiple"
)

// Poll is a session-scoped multiple-choice poll. A poll always has at least
// one option; replacing the option set purges all prior responses first.
type Poll struct {
	ID         uuid.UUID    `json:"id"`
	SessionID  uuid.UUID    `json:"session_id"`
	Question   string       `json:"question"`
	PassCode   *string      `json:"pass_code,omitempty"`
	PollsLimit int          `json:"polls_limit"`
	AnswerType AnswerType   `json:"answer_type"`
	Show       bool         `json:"show"`
	CreatedAt  time.Time    `json:"created_at"`
	Options    []PollOption `json:"options,omitempty"`
}

// PollOption is one answer choice of a poll.
type PollOption struct {
	ID       uuid.UUID `json:"id"`
	PollID   uuid.UUID `json:"poll_id"`
	Label    string    `json:"label"`
	Position int       `json:"position"`
}

// PollResponse is one user's vote for one option. The (poll, user, option)
// triple is unique; a repeat submission is rejected, never overwritten.
type PollResponse struct {
	ID        uuid.UUID    `json:"id"`
	PollID    uuid.UUID    `json:"poll_id"`
	OptionID  uuid.UUID    `json:"option_id"`
	UserID    uuid.UUID    `json:"user_id"`
	CreatedAt time.Time    `json:"created_at"`
	User      *UserSummary `json:"user,omitempty"`
}

// OptionTally is one option of a poll with its responses.
type OptionTally struct {
	Option    PollOption     `json:"option"`
	Count     int            `json:"count"`
	Responses []PollResponse `json:"responses"`
}

// PollResults is a poll with per-option tallies and the overall total.
type PollResults struct {
	Poll    Poll          `json:"poll"`
	Options []OptionTally `json:"options"`
	Total   int           `json:"total"`
}
