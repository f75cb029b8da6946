package polls

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/pkg/database"
)

func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("gatherly_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	return pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (full_name, email) VALUES ($1, $2) RETURNING id`,
		"Test Attendee", uuid.New().String()+"@example.com").Scan(&id)
	require.NoError(t, err)
	return id
}

func seedSession(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	var eventID uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO events (name) VALUES ('DevConf') RETURNING id`).Scan(&eventID)
	require.NoError(t, err)
	var sessionID uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO sessions (event_id, title, date, start_time, end_time)
		 VALUES ($1, 'Keynote', '2026-09-01', '09:00', '10:00') RETURNING id`,
		eventID).Scan(&sessionID)
	require.NoError(t, err)
	return sessionID
}

func seedPoll(t *testing.T, repo *Repository, sessionID uuid.UUID, options ...string) *models.Poll {
	t.Helper()
	p := &models.Poll{
		SessionID:  sessionID,
		Question:   "Favorite color?",
		PollsLimit: 1,
		AnswerType: models.AnswerSingle,
	}
	require.NoError(t, repo.Create(context.Background(), p, options))
	require.Len(t, p.Options, len(options))
	return p
}

func TestRepository_AddResponse_UniqueVote(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	sessionID := seedSession(t, pool)
	userID := seedUser(t, pool)
	p := seedPoll(t, repo, sessionID, "Red", "Blue")

	first, err := repo.AddResponse(ctx, p.ID, userID, p.Options[0].ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, first.PollID)
	assert.Equal(t, p.Options[0].ID, first.OptionID)
	require.NotNil(t, first.User)
	assert.Equal(t, "Test Attendee", first.User.FullName)

	// the unique constraint, not a pre-check, rejects the repeat
	_, err = repo.AddResponse(ctx, p.ID, userID, p.Options[0].ID)
	assert.ErrorIs(t, err, ErrDuplicateResponse)

	// a different option of the same poll is a distinct vote
	_, err = repo.AddResponse(ctx, p.ID, userID, p.Options[1].ID)
	require.NoError(t, err)

	results, err := repo.Results(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, results.Total)
}

func TestRepository_AddResponse_OptionMustBelongToPoll(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	sessionID := seedSession(t, pool)
	userID := seedUser(t, pool)
	p := seedPoll(t, repo, sessionID, "Red", "Blue")
	other := seedPoll(t, repo, sessionID, "Cat", "Dog")

	_, err := repo.AddResponse(ctx, p.ID, userID, other.Options[0].ID)
	assert.ErrorIs(t, err, ErrNotFound, "an option from another poll must not be accepted")

	_, err = repo.AddResponse(ctx, p.ID, userID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM poll_responses WHERE poll_id = $1`, p.ID).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestRepository_Update_ReplacingOptionsPurgesResponses(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	sessionID := seedSession(t, pool)
	userID := seedUser(t, pool)
	p := seedPoll(t, repo, sessionID, "Red", "Blue")

	_, err := repo.AddResponse(ctx, p.ID, userID, p.Options[0].ID)
	require.NoError(t, err)

	updated, err := repo.Update(ctx, p.ID, UpdateFields{Options: []string{"Green", "Yellow", "Purple"}})
	require.NoError(t, err)
	require.Len(t, updated.Options, 3)
	assert.Equal(t, "Green", updated.Options[0].Label)

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM poll_responses WHERE poll_id = $1`, p.ID).Scan(&count))
	assert.Equal(t, 0, count, "responses to the prior option set must not survive")

	results, err := repo.Results(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, results.Total)

	// votes on the new option set start over
	_, err = repo.AddResponse(ctx, p.ID, userID, updated.Options[0].ID)
	require.NoError(t, err)
}

func TestRepository_Update_PassCode(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	sessionID := seedSession(t, pool)
	p := seedPoll(t, repo, sessionID, "Red", "Blue")

	code := "vip-42"
	updated, err := repo.Update(ctx, p.ID, UpdateFields{PassCode: &code, SetPassCode: true})
	require.NoError(t, err)
	require.NotNil(t, updated.PassCode)
	assert.Equal(t, code, *updated.PassCode)

	// untouched when not flagged
	show := true
	updated, err = repo.Update(ctx, p.ID, UpdateFields{Show: &show})
	require.NoError(t, err)
	require.NotNil(t, updated.PassCode)

	// cleared back to NULL
	updated, err = repo.Update(ctx, p.ID, UpdateFields{SetPassCode: true})
	require.NoError(t, err)
	assert.Nil(t, updated.PassCode)
}
