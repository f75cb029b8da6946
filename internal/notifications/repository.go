// Package notifications stores the pending notifications the engagement
// core produces. Delivery (push, email digests) belongs to the platform's
// notification service, which drains this table.
package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/backend/internal/models"
)

// ErrSessionNotFound is returned when a session-scoped notification
// references a session that no longer exists.
var ErrSessionNotFound = errors.New("session not found")

// Repository handles notification persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateForEvent inserts an event-scoped notification.
func (r *Repository) CreateForEvent(ctx context.Context, eventID uuid.UUID, kind, title, body string) (*models.Notification, error) {
	const query = `INSERT INTO notifications (event_id, kind, title, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, event_id, session_id, kind, title, body, created_at`
	var n models.Notification
	err := r.pool.QueryRow(ctx, query, eventID, kind, title, body).Scan(
		&n.ID, &n.EventID, &n.SessionID, &n.Kind, &n.Title, &n.Body, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateForSession inserts a session-scoped notification, resolving the
// parent event from the session row.
func (r *Repository) CreateForSession(ctx context.Context, sessionID uuid.UUID, kind, title, body string) (*models.Notification, error) {
	const query = `INSERT INTO notifications (event_id, session_id, kind, title, body)
		SELECT s.event_id, s.id, $2, $3, $4 FROM sessions s WHERE s.id = $1
		RETURNING id, event_id, session_id, kind, title, body, created_at`
	var n models.Notification
	err := r.pool.QueryRow(ctx, query, sessionID, kind, title, body).Scan(
		&n.ID, &n.EventID, &n.SessionID, &n.Kind, &n.Title, &n.Body, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByEvent returns an event's notifications newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Notification, error) {
	const query = `SELECT id, event_id, session_id, kind, title, body, created_at
		FROM notifications WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.SessionID, &n.Kind, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}
