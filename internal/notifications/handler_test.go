package notifications

import (
	"context"
	"encoding/json"
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

	"github.com/gatherly/backend/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Notification, error) {
	args := m.Called(ctx, eventID)
	if l, ok := args.Get(0).([]models.Notification); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestContext(t *testing.T, path string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, path, strings.NewReader(""))
	return c, w
}

func TestListByEvent(t *testing.T) {
	store := &mockStore{}
	h := NewHandler(store, zap.NewNop())

	eventID := uuid.New()
	store.On("ListByEvent", mock.Anything, eventID).Return([]models.Notification{
		{ID: uuid.New(), EventID: eventID, Kind: "session_live", Title: "Keynote is live now"},
		{ID: uuid.New(), EventID: eventID, Kind: "poll_opened", Title: "New poll: Favorite color?"},
	}, nil)

	c, w := newTestContext(t, "/engage/notifications?eventId="+eventID.String())
	h.ListByEvent(c)

	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)

	var body struct {
		Data struct {
			Notifications []models.Notification `json:"notifications"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Notifications, 2)
	assert.Equal(t, "Keynote is live now", body.Data.Notifications[0].Title)
}

func TestListByEvent_Empty(t *testing.T) {
	store := &mockStore{}
	h := NewHandler(store, zap.NewNop())

	eventID := uuid.New()
	store.On("ListByEvent", mock.Anything, eventID).Return(nil, nil)

	c, w := newTestContext(t, "/engage/notifications?eventId="+eventID.String())
	h.ListByEvent(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"notifications":[]`)
}

func TestListByEvent_MissingEventID(t *testing.T) {
	store := &mockStore{}
	h := NewHandler(store, zap.NewNop())

	c, w := newTestContext(t, "/engage/notifications")
	h.ListByEvent(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "ListByEvent", mock.Anything, mock.Anything)
}
