package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/internal/realtime"
	"github.com/gatherly/backend/pkg/queue"
	"github.com/gatherly/backend/pkg/response"
)

// Store is the session persistence surface the handler depends on.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	SetLiveStatus(ctx context.Context, id uuid.UUID, isLive bool) (*models.Session, error)
	ListByDate(ctx context.Context, eventID uuid.UUID, date *time.Time) ([]models.SessionSummary, error)
}

// Notifier feeds the notification worker. May be nil (no fan-out wired).
type Notifier interface {
	EnqueueEngagement(ctx context.Context, payload queue.EngagementPayload) error
}

// ToggleLiveRequest is the body for PATCH /engage/:sessionId/live. A pointer
// keeps "missing" distinct from "false" so the flag is strictly boolean.
type ToggleLiveRequest struct {
	IsLive *bool `json:"isLive" binding:"required"`
}

// LiveUpdate is the eventSessionUpdate payload broadcast to the event room.
type LiveUpdate struct {
	SessionID   uuid.UUID  `json:"sessionId"`
	IsLive      bool       `json:"isLive"`
	WentLiveAt  *time.Time `json:"wentLiveAt"`
	SessionName string     `json:"sessionName"`
	EventID     uuid.UUID  `json:"eventId"`
}

// Handler exposes the session live-state toggle and agenda listing.
type Handler struct {
	store    Store
	hub      realtime.Broadcaster
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(store Store, hub realtime.Broadcaster, notifier Notifier, logger *zap.Logger) *Handler {
	return &Handler{store: store, hub: hub, notifier: notifier, logger: logger}
}

// Get handles GET /engage/session/:sessionId.
func (h *Handler) Get(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	s, err := h.store.GetByID(c.Request.Context(), sessionID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("get session", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to load session")
		return
	}
	response.OK(c, s)
}

// ToggleLive handles PATCH /engage/:sessionId/live. The broadcast and the
// notification enqueue run after the write commits and never roll it back.
func (h *Handler) ToggleLive(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req ToggleLiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "isLive must be a boolean", err.Error())
		return
	}

	s, err := h.store.SetLiveStatus(c.Request.Context(), sessionID, *req.IsLive)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("set live status", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to update session")
		return
	}

	update := LiveUpdate{
		SessionID:   s.ID,
		IsLive:      s.IsLive,
		WentLiveAt:  s.WentLiveAt,
		SessionName: s.Title,
		EventID:     s.EventID,
	}
	if err := h.hub.Broadcast(realtime.EventRoom(s.EventID), "eventSessionUpdate", update); err != nil {
		h.logger.Warn("broadcast session update", zap.Error(err))
	}
	h.notify(c.Request.Context(), s)

	response.OK(c, s)
}

func (h *Handler) notify(ctx context.Context, s *models.Session) {
	if h.notifier == nil {
		return
	}
	kind := queue.KindSessionOffline
	title := s.Title + " has ended"
	if s.IsLive {
		kind = queue.KindSessionLive
		title = s.Title + " is live now"
	}
	sid := s.ID
	err := h.notifier.EnqueueEngagement(ctx, queue.EngagementPayload{
		Kind:      kind,
		EventID:   s.EventID,
		SessionID: &sid,
		Title:     title,
	})
	if err != nil {
		h.logger.Warn("enqueue notification", zap.Error(err))
	}
}

// ListByDate handles GET /engage/sessions/date?eventId=&date=. The date is
// optional and, when present, must be a YYYY-MM-DD UTC calendar day.
func (h *Handler) ListByDate(c *gin.Context) {
	eventID, err := uuid.Parse(c.Query("eventId"))
	if err != nil {
		response.BadRequest(c, "eventId is required")
		return
	}
	var day *time.Time
	if raw := c.Query("date"); raw != "" {
		d, err := parseDay(raw)
		if err != nil {
			response.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		day = &d
	}

	list, err := h.store.ListByDate(c.Request.Context(), eventID, day)
	if err != nil {
		h.logger.Error("list sessions by date", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// Audience handles GET /engage/session/:sessionId/audience (current room size).
func (h *Handler) Audience(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	response.OK(c, gin.H{"count": h.hub.RoomCount(realtime.SessionRoom(sessionID))})
}

// parseDay parses a YYYY-MM-DD string as a UTC calendar day.
func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
