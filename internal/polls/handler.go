package polls

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherly/backend/internal/middleware"
	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/internal/realtime"
	"github.com/gatherly/backend/pkg/queue"
	"github.com/gatherly/backend/pkg/response"
)

// Store is the poll persistence surface the handler depends on.
type Store interface {
	SessionExists(ctx context.Context, sessionID uuid.UUID) (bool, error)
	Create(ctx context.Context, p *models.Poll, options []string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*models.Poll, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddResponse(ctx context.Context, pollID, userID, optionID uuid.UUID) (*models.PollResponse, error)
	Results(ctx context.Context, pollID uuid.UUID) (*models.PollResults, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.PollResults, error)
}

// Notifier feeds the notification worker. May be nil.
type Notifier interface {
	EnqueueEngagement(ctx context.Context, payload queue.EngagementPayload) error
}

// CreateRequest is the body for POST /engage/session/:sessionId/poll.
type CreateRequest struct {
	Question   string            `json:"question" binding:"required"`
	Options    []string          `json:"options" binding:"required,min=1,dive,required"`
	PassCode   *string           `json:"passCode"`
	PollsLimit int               `json:"pollsLimit"`
	AnswerType models.AnswerType `json:"answerType"`
	Show       bool              `json:"show"`
}

// UpdateRequest is the body for PUT /engage/poll/:pollId. All fields are
// optional; a non-empty options list replaces the whole option set, and an
// empty passCode string clears the code.
type UpdateRequest struct {
	Question   *string            `json:"question"`
	Options    []string           `json:"options"`
	PassCode   *string            `json:"passCode"`
	PollsLimit *int               `json:"pollsLimit"`
	AnswerType *models.AnswerType `json:"answerType"`
	Show       *bool              `json:"show"`
}

// RespondRequest is the body for POST /engage/poll/:pollId/response.
type RespondRequest struct {
	OptionID uuid.UUID `json:"optionId" binding:"required"`
}

// PollUpdate is the sessionPolls payload broadcast to the session room.
type PollUpdate struct {
	Type     string               `json:"type"` // "new", "update", "delete", "response"
	Poll     *models.Poll         `json:"poll,omitempty"`
	PollID   uuid.UUID            `json:"pollId,omitempty"`
	Response *models.PollResponse `json:"response,omitempty"`
}

// Handler runs session-scoped polls with duplicate-safe voting.
type Handler struct {
	store    Store
	hub      realtime.Broadcaster
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(store Store, hub realtime.Broadcaster, notifier Notifier, logger *zap.Logger) *Handler {
	return &Handler{store: store, hub: hub, notifier: notifier, logger: logger}
}

// Create handles POST /engage/session/:sessionId/poll (organizer/admin).
func (h *Handler) Create(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "question and at least one option are required", err.Error())
		return
	}
	if req.AnswerType == "" {
		req.AnswerType = models.AnswerSingle
	}
	if req.PollsLimit <= 0 {
		req.PollsLimit = 1
	}

	exists, err := h.store.SessionExists(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("session lookup", zap.Error(err))
		response.Internal(c, "failed to create poll")
		return
	}
	if !exists {
		response.NotFound(c, "session not found")
		return
	}

	p := &models.Poll{
		SessionID:  sessionID,
		Question:   req.Question,
		PassCode:   req.PassCode,
		PollsLimit: req.PollsLimit,
		AnswerType: req.AnswerType,
		Show:       req.Show,
	}
	if err := h.store.Create(c.Request.Context(), p, req.Options); err != nil {
		h.logger.Error("create poll", zap.Error(err))
		response.Internal(c, "failed to create poll")
		return
	}

	h.broadcast(sessionID, PollUpdate{Type: "new", Poll: p})
	h.notifyOpened(c.Request.Context(), p)
	response.Created(c, p)
}

// Update handles PUT /engage/poll/:pollId (organizer/admin). Replacing the
// options purges every response to the prior option set inside the same
// transaction.
func (h *Handler) Update(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	fields := UpdateFields{
		Question:   req.Question,
		PollsLimit: req.PollsLimit,
		AnswerType: req.AnswerType,
		Show:       req.Show,
		Options:    req.Options,
	}
	if req.PassCode != nil {
		fields.SetPassCode = true
		if *req.PassCode != "" {
			fields.PassCode = req.PassCode
		}
	}

	p, err := h.store.Update(c.Request.Context(), pollID, fields)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("update poll", zap.Error(err), zap.String("poll_id", pollID.String()))
		response.Internal(c, "failed to update poll")
		return
	}

	h.broadcast(p.SessionID, PollUpdate{Type: "update", Poll: p})
	response.OK(c, p)
}

// Delete handles DELETE /engage/poll/:pollId and POST /engage/poll/:pollId/end
// (organizer/admin). Ending a poll and deleting it are the same operation;
// there is no archived state.
func (h *Handler) Delete(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}

	p, err := h.store.GetByID(c.Request.Context(), pollID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("load poll", zap.Error(err))
		response.Internal(c, "failed to delete poll")
		return
	}
	if err := h.store.Delete(c.Request.Context(), pollID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "poll not found")
			return
		}
		h.logger.Error("delete poll", zap.Error(err))
		response.Internal(c, "failed to delete poll")
		return
	}

	h.broadcast(p.SessionID, PollUpdate{Type: "delete", PollID: pollID})
	response.OK(c, gin.H{"id": pollID, "deleted": true})
}

// Respond handles POST /engage/poll/:pollId/response. A repeat vote on the
// same option is rejected with 409; voting for a different option of the
// same poll is allowed.
func (h *Handler) Respond(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "optionId is required", err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	p, err := h.store.GetByID(c.Request.Context(), pollID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("load poll", zap.Error(err))
		response.Internal(c, "failed to record response")
		return
	}

	resp, err := h.store.AddResponse(c.Request.Context(), pollID, userID, req.OptionID)
	if errors.Is(err, ErrDuplicateResponse) {
		response.Conflict(c, "response already recorded")
		return
	}
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "option not found")
		return
	}
	if err != nil {
		h.logger.Error("add poll response", zap.Error(err))
		response.Internal(c, "failed to record response")
		return
	}

	h.broadcast(p.SessionID, PollUpdate{Type: "response", PollID: pollID, Response: resp})
	response.Created(c, resp)
}

// Results handles GET /engage/poll/:pollId/results.
func (h *Handler) Results(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	results, err := h.store.Results(c.Request.Context(), pollID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("poll results", zap.Error(err))
		response.Internal(c, "failed to load results")
		return
	}
	response.OK(c, results)
}

// ListByEvent handles GET /engage/polls?eventId=.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Query("eventId"))
	if err != nil {
		response.BadRequest(c, "eventId is required")
		return
	}
	results, err := h.store.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list polls", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to list polls")
		return
	}
	response.OK(c, gin.H{"polls": results})
}

func (h *Handler) broadcast(sessionID uuid.UUID, update PollUpdate) {
	if err := h.hub.Broadcast(realtime.SessionRoom(sessionID), "sessionPolls", update); err != nil {
		h.logger.Warn("broadcast poll update", zap.Error(err))
	}
}

func (h *Handler) notifyOpened(ctx context.Context, p *models.Poll) {
	if h.notifier == nil || !p.Show {
		return
	}
	sid := p.SessionID
	err := h.notifier.EnqueueEngagement(ctx, queue.EngagementPayload{
		Kind:      queue.KindPollOpened,
		SessionID: &sid,
		Title:     "New poll: " + p.Question,
	})
	if err != nil {
		h.logger.Warn("enqueue notification", zap.Error(err))
	}
}
