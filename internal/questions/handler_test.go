package questions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatherly/backend/internal/middleware"
	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/internal/realtime"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SessionExists(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, sessionID, userID uuid.UUID, content string) (*models.Question, error) {
	args := m.Called(ctx, sessionID, userID, content)
	if q, ok := args.Get(0).(*models.Question); ok {
		return q, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id uuid.UUID, status models.QuestionStatus, editedContent *string) (*models.Question, error) {
	args := m.Called(ctx, id, status, editedContent)
	if q, ok := args.Get(0).(*models.Question); ok {
		return q, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListBySession(ctx context.Context, sessionID uuid.UUID, status models.QuestionStatus) ([]models.Question, error) {
	args := m.Called(ctx, sessionID, status)
	if l, ok := args.Get(0).([]models.Question); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

type broadcastCall struct {
	room    string
	event   string
	payload interface{}
}

type fakeBroadcaster struct {
	calls []broadcastCall
}

func (f *fakeBroadcaster) Broadcast(room, event string, payload interface{}) error {
	f.calls = append(f.calls, broadcastCall{room: room, event: event, payload: payload})
	return nil
}

func (f *fakeBroadcaster) RoomCount(string) int { return 0 }

func newTestContext(t *testing.T, method, path, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestAsk_TrimsContent(t *testing.T) {
	store := &mockStore{}
	hub := &fakeBroadcaster{}
	h := NewHandler(store, hub, zap.NewNop())

	sessionID := uuid.New()
	userID := uuid.New()
	store.On("SessionExists", mock.Anything, sessionID).Return(true, nil)
	store.On("Create", mock.Anything, sessionID, userID, "What about pricing?").Return(&models.Question{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    userID,
		Content:   "What about pricing?",
		Status:    models.QuestionPending,
	}, nil)

	c, w := newTestContext(t, http.MethodPost, "/engage/session/"+sessionID.String()+"/questions",
		`{"content":"  What about pricing?  "}`)
	c.Params = gin.Params{{Key: "sessionId", Value: sessionID.String()}}
	c.Set(middleware.ContextUserID, userID)
	h.Ask(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	store.AssertExpectations(t)

	require.Len(t, hub.calls, 1)
	assert.Equal(t, realtime.SessionRoom(sessionID), hub.calls[0].room)
	assert.Equal(t, "sessionQuestions", hub.calls[0].event)
	update := hub.calls[0].payload.(QuestionUpdate)
	assert.Equal(t, "new", update.Type)
	assert.Equal(t, models.QuestionPending, update.Question.Status)
}

func TestAsk_EmptyContent(t *testing.T) {
	store := &mockStore{}
	hub := &fakeBroadcaster{}
	h := NewHandler(store, hub, zap.NewNop())

	sessionID := uuid.New()
	for _, body := range []string{`{"content":""}`, `{"content":"   "}`, `{}`} {
		c, w := newTestContext(t, http.MethodPost, "/engage/session/"+sessionID.String()+"/questions", body)
		c.Params = gin.Params{{Key: "sessionId", Value: sessionID.String()}}
		c.Set(middleware.ContextUserID, uuid.New())
		h.Ask(c)
		assert.Equalf(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, hub.calls)
}

func TestAsk_SessionNotFound(t *testing.T) {
	store := &mockStore{}
	hub := &fakeBroadcaster{}
	h := NewHandler(store, hub, zap.NewNop())

	sessionID := uuid.New()
	store.On("SessionExists", mock.Anything, sessionID).Return(false, nil)

	c, w := newTestContext(t, http.MethodPost, "/engage/session/"+sessionID.String()+"/questions",
		`{"content":"hello?"}`)
	c.Params = gin.Params{{Key: "sessionId", Value: sessionID.String()}}
	c.Set(middleware.ContextUserID, uuid.New())
	h.Ask(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, hub.calls)
}

func TestModerate_StatusOnlyKeepsContent(t *testing.T) {
	store := &mockStore{}
	hub := &fakeBroadcaster{}
	h := NewHandler(store, hub, zap.NewNop())

	questionID := uuid.New()
	sessionID := uuid.New()
	store.On("Update", mock.Anything, questionID, models.QuestionDeclined, (*string)(nil)).Return(&models.Question{
		ID:        questionID,
		SessionID: sessionID,
		Content:   "original content",
		Status:    models.QuestionDeclined,
	}, nil)

	c, w := newTestContext(t, http.MethodPatch, "/engage/question/"+questionID.String(),
		`{"status":"declined"}`)
	c.Params = gin.Params{{Key: "questionId", Value: questionID.String()}}
	h.Moderate(c)

	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)

	require.Len(t, hub.calls, 1)
	assert.Equal(t, realtime.SessionRoom(sessionID), hub.calls[0].room)
	update := hub.calls[0].payload.(QuestionUpdate)
	assert.Equal(t, "update", update.Type)
	assert.Equal(t, "original content", update.Question.Content)
}

func TestModerate_TrimsEditedContent(t *testing.T) {
	store := &mockStore{}
	h := NewHandler(store, &fakeBroadcaster{}, zap.NewNop())

	questionID := uuid.New()
	trimmed := "shorter version"
	store.On("Update", mock.Anything, questionID, models.QuestionApproved, &trimmed).Return(&models.Question{
		ID:     questionID,
		Status: models.QuestionApproved,
	}, nil)

	c, w := newTestContext(t, http.MethodPatch, "/engage/question/"+questionID.String(),
		`{"status":"approved","editedContent":"  shorter version  "}`)
	c.Params = gin.Params{{Key: "questionId", Value: questionID.String()}}
	h.Moderate(c)

	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}

func TestModerate_InvalidInput(t *testing.T) {
	store := &mockStore{}
	hub := &fakeBroadcaster{}
	h := NewHandler(store, hub, zap.NewNop())

	questionID := uuid.New()
	for _, body := range []string{
		`{"status":"archived"}`,
		`{}`,
		`{"status":"approved","editedContent":42}`,
	} {
		c, w := newTestContext(t, http.MethodPatch, "/engage/question/"+questionID.String(), body)
		c.Params = gin.Params{{Key: "questionId", Value: questionID.String()}}
		h.Moderate(c)
		assert.Equalf(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, hub.calls)
}

func TestModerate_NotFound(t *testing.T) {
	store := &mockStore{}
	hub := &fakeBroadcaster{}
	h := NewHandler(store, hub, zap.NewNop())

	questionID := uuid.New()
	store.On("Update", mock.Anything, questionID, models.QuestionApproved, (*string)(nil)).Return(nil, ErrNotFound)

	c, w := newTestContext(t, http.MethodPatch, "/engage/question/"+questionID.String(),
		`{"status":"approved"}`)
	c.Params = gin.Params{{Key: "questionId", Value: questionID.String()}}
	h.Moderate(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, hub.calls, "no broadcast on not found")
}

func TestList_FilterValidation(t *testing.T) {
	store := &mockStore{}
	h := NewHandler(store, &fakeBroadcaster{}, zap.NewNop())

	sessionID := uuid.New()
	c, w := newTestContext(t, http.MethodGet, "/engage/"+sessionID.String()+"/questions?status=deleted", "")
	c.Params = gin.Params{{Key: "sessionId", Value: sessionID.String()}}
	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "ListBySession", mock.Anything, mock.Anything, mock.Anything)
}

func TestList_ByStatus(t *testing.T) {
	store := &mockStore{}
	h := NewHandler(store, &fakeBroadcaster{}, zap.NewNop())

	sessionID := uuid.New()
	store.On("SessionExists", mock.Anything, sessionID).Return(true, nil)
	store.On("ListBySession", mock.Anything, sessionID, models.QuestionApproved).Return([]models.Question{
		{ID: uuid.New(), Status: models.QuestionApproved},
	}, nil)

	c, w := newTestContext(t, http.MethodGet, "/engage/"+sessionID.String()+"/questions?status=approved", "")
	c.Params = gin.Params{{Key: "sessionId", Value: sessionID.String()}}
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}
