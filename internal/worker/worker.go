package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gatherly/backend/internal/notifications"
	"github.com/gatherly/backend/pkg/queue"
)

// NotificationProcessor drains engagement jobs from the queue and persists
// notification rows for the platform's notification service to deliver.
type NotificationProcessor struct {
	repo   *notifications.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewNotificationProcessor creates an engagement notification processor.
func NewNotificationProcessor(repo *notifications.Repository, q *queue.Queue, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{repo: repo, queue: q, logger: logger}
}

// Process executes one engagement notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEngagement {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EngagementPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var err error
	if payload.SessionID != nil {
		_, err = p.repo.CreateForSession(ctx, *payload.SessionID, payload.Kind, payload.Title, payload.Body)
		if errors.Is(err, notifications.ErrSessionNotFound) {
			// session deleted since the job was enqueued; nothing to notify
			p.logger.Info("dropping notification for missing session",
				zap.String("job_id", job.ID), zap.String("session_id", payload.SessionID.String()))
			return nil
		}
	} else {
		_, err = p.repo.CreateForEvent(ctx, payload.EventID, payload.Kind, payload.Title, payload.Body)
	}
	if err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	p.logger.Info("notification recorded",
		zap.String("job_id", job.ID), zap.String("kind", payload.Kind))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
