package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/backend/internal/models"
)

// ErrNotFound is returned when the referenced session does not exist.
var ErrNotFound = errors.New("session not found")

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a session with its parent event's name.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const query = `SELECT s.id, s.event_id, e.name, s.title, s.date,
			s.start_time::text, s.end_time::text, s.is_live, s.went_live_at, s.created_at
		FROM sessions s JOIN events e ON e.id = s.event_id
		WHERE s.id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.EventID, &s.EventName, &s.Title, &s.Date,
		&s.StartTime, &s.EndTime, &s.IsLive, &s.WentLiveAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetLiveStatus flips the live flag and keeps went_live_at coupled to it in
// a single UPDATE: going live stamps the current time, going offline clears
// it. Returns the updated session with its parent event's name.
func (r *Repository) SetLiveStatus(ctx context.Context, id uuid.UUID, isLive bool) (*models.Session, error) {
	const query = `UPDATE sessions s
		SET is_live = $2,
			went_live_at = CASE WHEN $2 THEN NOW() ELSE NULL END
		FROM events e
		WHERE s.id = $1 AND e.id = s.event_id
		RETURNING s.id, s.event_id, e.name, s.title, s.date,
			s.start_time::text, s.end_time::text, s.is_live, s.went_live_at, s.created_at`
	var s models.Session
	err := r.pool.QueryRow(ctx, query, id, isLive).Scan(
		&s.ID, &s.EventID, &s.EventName, &s.Title, &s.Date,
		&s.StartTime, &s.EndTime, &s.IsLive, &s.WentLiveAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByDate returns an event's sessions ordered by start time ascending,
// restricted to the given UTC calendar day when date is non-nil.
func (r *Repository) ListByDate(ctx context.Context, eventID uuid.UUID, date *time.Time) ([]models.SessionSummary, error) {
	const query = `SELECT id, title, start_time::text, is_live, went_live_at
		FROM sessions
		WHERE event_id = $1 AND ($2::date IS NULL OR date = $2::date)
		ORDER BY start_time ASC`
	rows, err := r.pool.Query(ctx, query, eventID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SessionSummary
	for rows.Next() {
		var s models.SessionSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.StartTime, &s.IsLive, &s.WentLiveAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
