package polls

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/backend/internal/models"
)

var (
	// ErrNotFound is returned when the referenced poll (or its session,
	// option) does not exist.
	ErrNotFound = errors.New("poll not found")
	// ErrDuplicateResponse is returned when a (poll, user, option) vote
	// already exists. The unique index on poll_responses is the single
	// source of truth; no check-then-insert.
	ErrDuplicateResponse = errors.New("duplicate poll response")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// UpdateFields carries a partial poll update. Nil scalars are left
// untouched; a non-empty Options slice replaces the whole option set.
// PassCode is only applied when SetPassCode is true, so a nil value can
// clear the code back to NULL instead of meaning "leave as is".
type UpdateFields struct {
	Question    *string
	PassCode    *string
	SetPassCode bool
	PollsLimit  *int
	AnswerType  *models.AnswerType
	Show        *bool
	Options     []string
}

// Repository handles poll persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
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

// Create inserts a poll and its options in one transaction.
func (r *Repository) Create(ctx context.Context, p *models.Poll, options []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertPoll = `INSERT INTO polls (session_id, question, pass_code, polls_limit, answer_type, show)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err = tx.QueryRow(ctx, insertPoll,
		p.SessionID, p.Question, p.PassCode, p.PollsLimit, p.AnswerType, p.Show).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return err
	}

	p.Options, err = insertOptions(ctx, tx, p.ID, options)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID returns a poll with its options.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	const query = `SELECT id, session_id, question, pass_code, polls_limit, answer_type, show, created_at
		FROM polls WHERE id = $1`
	var p models.Poll
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.SessionID, &p.Question, &p.PassCode, &p.PollsLimit,
		&p.AnswerType, &p.Show, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Options, err = r.loadOptions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update changes the supplied scalar fields and, when a non-empty option
// list is given, atomically replaces the option set: responses to the prior
// options are purged first, then the options themselves, then the new
// options are inserted. Concurrent readers never see the intermediate state.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*models.Poll, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const update = `UPDATE polls SET
			question = COALESCE($2, question),
			pass_code = CASE WHEN $3 THEN $4 ELSE pass_code END,
			polls_limit = COALESCE($5, polls_limit),
			answer_type = COALESCE($6, answer_type),
			show = COALESCE($7, show)
		WHERE id = $1
		RETURNING id`
	var updated uuid.UUID
	err = tx.QueryRow(ctx, update, id,
		fields.Question, fields.SetPassCode, fields.PassCode,
		fields.PollsLimit, fields.AnswerType, fields.Show).
		Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(fields.Options) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM poll_responses WHERE poll_id = $1`, id); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM poll_options WHERE poll_id = $1`, id); err != nil {
			return nil, err
		}
		if _, err := insertOptions(ctx, tx, id, fields.Options); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes a poll; options and responses cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddResponse records one user's vote for one option. A repeat of the same
// (poll, user, option) triple maps the unique violation to
// ErrDuplicateResponse. A missing poll, a missing option, or an option that
// belongs to a different poll maps to ErrNotFound; the insert sources its
// row from poll_options so a mismatched (poll, option) pair never lands.
func (r *Repository) AddResponse(ctx context.Context, pollID, userID, optionID uuid.UUID) (*models.PollResponse, error) {
	const query = `WITH ins AS (
			INSERT INTO poll_responses (poll_id, option_id, user_id)
			SELECT o.poll_id, o.id, $3
			FROM poll_options o
			WHERE o.id = $2 AND o.poll_id = $1
			RETURNING id, poll_id, option_id, user_id, created_at
		)
		SELECT ins.id, ins.poll_id, ins.option_id, ins.user_id, ins.created_at,
			u.full_name, u.email
		FROM ins JOIN users u ON u.id = ins.user_id`
	var resp models.PollResponse
	var user models.UserSummary
	err := r.pool.QueryRow(ctx, query, pollID, optionID, userID).Scan(
		&resp.ID, &resp.PollID, &resp.OptionID, &resp.UserID, &resp.CreatedAt,
		&user.FullName, &user.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return nil, ErrDuplicateResponse
			case pgForeignKeyViolation:
				return nil, ErrNotFound
			}
		}
		return nil, err
	}
	user.ID = resp.UserID
	resp.User = &user
	return &resp, nil
}

// Results returns a poll with per-option response counts, the responders in
// vote order, and the overall total.
func (r *Repository) Results(ctx context.Context, pollID uuid.UUID) (*models.PollResults, error) {
	p, err := r.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	responses, err := r.loadResponses(ctx, []uuid.UUID{pollID})
	if err != nil {
		return nil, err
	}
	return assembleResults(p, responses[pollID]), nil
}

// ListByEvent returns all polls across an event's sessions, newest first,
// each with full tallies.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.PollResults, error) {
	const query = `SELECT p.id, p.session_id, p.question, p.pass_code, p.polls_limit,
			p.answer_type, p.show, p.created_at
		FROM polls p JOIN sessions s ON s.id = p.session_id
		WHERE s.event_id = $1
		ORDER BY p.created_at DESC`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var polls []*models.Poll
	var ids []uuid.UUID
	for rows.Next() {
		var p models.Poll
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Question, &p.PassCode,
			&p.PollsLimit, &p.AnswerType, &p.Show, &p.CreatedAt); err != nil {
			return nil, err
		}
		polls = append(polls, &p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(polls) == 0 {
		return []models.PollResults{}, nil
	}

	options, err := r.loadOptionsMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	responses, err := r.loadResponses(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]models.PollResults, 0, len(polls))
	for _, p := range polls {
		p.Options = options[p.ID]
		results = append(results, *assembleResults(p, responses[p.ID]))
	}
	return results, nil
}

func (r *Repository) loadOptions(ctx context.Context, pollID uuid.UUID) ([]models.PollOption, error) {
	m, err := r.loadOptionsMany(ctx, []uuid.UUID{pollID})
	if err != nil {
		return nil, err
	}
	return m[pollID], nil
}

func (r *Repository) loadOptionsMany(ctx context.Context, pollIDs []uuid.UUID) (map[uuid.UUID][]models.PollOption, error) {
	const query = `SELECT id, poll_id, label, position
		FROM poll_options WHERE poll_id = ANY($1)
		ORDER BY poll_id, position ASC`
	rows, err := r.pool.Query(ctx, query, pollIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]models.PollOption)
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Label, &o.Position); err != nil {
			return nil, err
		}
		out[o.PollID] = append(out[o.PollID], o)
	}
	return out, rows.Err()
}

func (r *Repository) loadResponses(ctx context.Context, pollIDs []uuid.UUID) (map[uuid.UUID][]models.PollResponse, error) {
	const query = `SELECT pr.id, pr.poll_id, pr.option_id, pr.user_id, pr.created_at,
			u.full_name, u.email
		FROM poll_responses pr JOIN users u ON u.id = pr.user_id
		WHERE pr.poll_id = ANY($1)
		ORDER BY pr.created_at ASC`
	rows, err := r.pool.Query(ctx, query, pollIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]models.PollResponse)
	for rows.Next() {
		var resp models.PollResponse
		var user models.UserSummary
		if err := rows.Scan(&resp.ID, &resp.PollID, &resp.OptionID, &resp.UserID,
			&resp.CreatedAt, &user.FullName, &user.Email); err != nil {
			return nil, err
		}
		user.ID = resp.UserID
		resp.User = &user
		out[resp.PollID] = append(out[resp.PollID], resp)
	}
	return out, rows.Err()
}

func insertOptions(ctx context.Context, tx pgx.Tx, pollID uuid.UUID, labels []string) ([]models.PollOption, error) {
	const insert = `INSERT INTO poll_options (poll_id, label, position)
		VALUES ($1, $2, $3)
		RETURNING id`
	options := make([]models.PollOption, 0, len(labels))
	for i, label := range labels {
		o := models.PollOption{PollID: pollID, Label: label, Position: i}
		if err := tx.QueryRow(ctx, insert, pollID, label, i).Scan(&o.ID); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, nil
}

// assembleResults groups responses under their options.
func assembleResults(p *models.Poll, responses []models.PollResponse) *models.PollResults {
	byOption := make(map[uuid.UUID][]models.PollResponse)
	for _, resp := range responses {
		byOption[resp.OptionID] = append(byOption[resp.OptionID], resp)
	}
	out := &models.PollResults{Poll: *p}
	for _, o := range p.Options {
		rs := byOption[o.ID]
		if rs == nil {
			rs = []models.PollResponse{}
		}
		out.Options = append(out.Options, models.OptionTally{
			Option:    o,
			Count:     len(rs),
			Responses: rs,
		})
		out.Total += len(rs)
	}
	return out
}
