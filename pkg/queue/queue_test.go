package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngagementJob(t *testing.T) {
	sessionID := uuid.New()
	payload := EngagementPayload{
		Kind:      KindSessionLive,
		EventID:   uuid.New(),
		SessionID: &sessionID,
		Title:     "Keynote is live",
	}

	job, err := NewEngagementJob(payload)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypeEngagement, job.Type)
	assert.Equal(t, 0, job.Attempt)
	assert.False(t, job.CreatedAt.IsZero())

	var decoded EngagementPayload
	require.NoError(t, json.Unmarshal(job.Payload, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestJobEnvelopeRoundTrip(t *testing.T) {
	job, err := NewEngagementJob(EngagementPayload{
		Kind:    KindPollOpened,
		EventID: uuid.New(),
		Title:   "New poll: Favorite color?",
	})
	require.NoError(t, err)

	raw, err := json.Marshal(job)
	require.NoError(t, err)

	var got Job
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Type, got.Type)
	assert.JSONEq(t, string(job.Payload), string(got.Payload))
}
