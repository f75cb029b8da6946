package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEngagement is the Redis list key for engagement notification jobs.
	QueueEngagement = "worker:engagement"
	// QueueDLQ is the dead-letter queue for jobs that exhausted retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeEngagement JobType = "engagement_notification"
)

// Engagement notification kinds.
const (
	KindSessionLive    = "session_live"
	KindSessionOffline = "session_offline"
	KindPollOpened     = "poll_opened"
)

// EngagementPayload is the payload for engagement notification jobs.
type EngagementPayload struct {
	Kind      string     `json:"kind"`
	EventID   uuid.UUID  `json:"event_id"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEngagementJob builds a job envelope for an engagement notification.
func NewEngagementJob(payload EngagementPayload) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      JobTypeEngagement,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}, nil
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueEngagement enqueues an engagement notification job.
func (q *Queue) EnqueueEngagement(ctx context.Context, payload EngagementPayload) error {
	job, err := NewEngagementJob(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueEngagement, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued engagement job",
		zap.String("job_id", job.ID), zap.String("kind", payload.Kind))
	return nil
}

// Dequeue blocks until a job is available or ctx is done. Returns the job
// and the queue name it was popped from.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueEngagement).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with an incremented attempt counter. Once the job
// reaches MaxRetries it goes to the DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueEngagement, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
