package notifications

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/pkg/response"
)

// Store is the notification read surface the handler depends on.
type Store interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Notification, error)
}

// Handler serves the notification feed an event's attendees poll.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// ListByEvent handles GET /engage/notifications?eventId=.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Query("eventId"))
	if err != nil {
		response.BadRequest(c, "eventId is required")
		return
	}
	list, err := h.store.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list notifications", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to list notifications")
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	response.OK(c, gin.H{"notifications": list})
}
