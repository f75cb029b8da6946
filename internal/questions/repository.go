package questions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/backend/internal/models"
)

// ErrNotFound is returned when the referenced question does not exist.
var ErrNotFound = errors.New("question not found")

// Repository handles question persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SessionExists reports whether a session row exists.
func (r *Repository) SessionExists(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, sessionID).Scan(&exists)
	return exists, err
}

// Create inserts a new pending question and returns it with the author's
// minimal profile.
func (r *Repository) Create(ctx context.Context, sessionID, userID uuid.UUID, content string) (*models.Question, error) {
	const query = `WITH ins AS (
			INSERT INTO questions (session_id, user_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, session_id, user_id, content, status, edited_content, created_at
		)
		SELECT ins.id, ins.session_id, ins.user_id, ins.content, ins.status,
			ins.edited_content, ins.created_at, u.full_name, u.email
		FROM ins JOIN users u ON u.id = ins.user_id`
	var q models.Question
	var author models.UserSummary
	err := r.pool.QueryRow(ctx, query, sessionID, userID, content).Scan(
		&q.ID, &q.SessionID, &q.UserID, &q.Content, &q.Status,
		&q.EditedContent, &q.CreatedAt, &author.FullName, &author.Email)
	if err != nil {
		return nil, err
	}
	author.ID = q.UserID
	q.Author = &author
	return &q, nil
}

// Update sets the moderation status and, when editedContent is non-nil, the
// edited content. Returns the updated question with its author.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, status models.QuestionStatus, editedContent *string) (*models.Question, error) {
	const query = `WITH upd AS (
			UPDATE questions
			SET status = $2, edited_content = COALESCE($3, edited_content)
			WHERE id = $1
			RETURNING id, session_id, user_id, content, status, edited_content, created_at
		)
		SELECT upd.id, upd.session_id, upd.user_id, upd.content, upd.status,
			upd.edited_content, upd.created_at, u.full_name, u.email
		FROM upd JOIN users u ON u.id = upd.user_id`
	var q models.Question
	var author models.UserSummary
	err := r.pool.QueryRow(ctx, query, id, status, editedContent).Scan(
		&q.ID, &q.SessionID, &q.UserID, &q.Content, &q.Status,
		&q.EditedContent, &q.CreatedAt, &author.FullName, &author.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	author.ID = q.UserID
	q.Author = &author
	return &q, nil
}

// ListBySession returns a session's questions newest first, each with its
// author, optionally filtered by status (empty string means all).
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID, status models.QuestionStatus) ([]models.Question, error) {
	const query = `SELECT q.id, q.session_id, q.user_id, q.content, q.status,
			q.edited_content, q.created_at, u.full_name, u.email
		FROM questions q JOIN users u ON u.id = q.user_id
		WHERE q.session_id = $1 AND ($2 = '' OR q.status = $2)
		ORDER BY q.created_at DESC`
	rows, err := r.pool.Query(ctx, query, sessionID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Question
	for rows.Next() {
		var q models.Question
		var author models.UserSummary
		if err := rows.Scan(&q.ID, &q.SessionID, &q.UserID, &q.Content, &q.Status,
			&q.EditedContent, &q.CreatedAt, &author.FullName, &author.Email); err != nil {
			return nil, err
		}
		author.ID = q.UserID
		q.Author = &author
		list = append(list, q)
	}
	return list, rows.Err()
}
