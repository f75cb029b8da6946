package questions

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherly/backend/internal/middleware"
	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/internal/realtime"
	"github.com/gatherly/backend/pkg/response"
)

// Store is the question persistence surface the handler depends on.
type Store interface {
	SessionExists(ctx context.Context, sessionID uuid.UUID) (bool, error)
	Create(ctx context.Context, sessionID, userID uuid.UUID, content string) (*models.Question, error)
	Update(ctx context.Context, id uuid.UUID, status models.QuestionStatus, editedContent *string) (*models.Question, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, status models.QuestionStatus) ([]models.Question, error)
}

// AskRequest is the body for POST /engage/session/:sessionId/questions.
type AskRequest struct {
	Content string `json:"content"`
}

// ModerateRequest is the body for PATCH /engage/question/:questionId.
type ModerateRequest struct {
	Status        models.QuestionStatus `json:"status" binding:"required"`
	EditedContent *string               `json:"editedContent"`
}

// QuestionUpdate is the sessionQuestions payload broadcast to the session
// room on every creation and moderation.
type QuestionUpdate struct {
	Type     string           `json:"type"` // "new" or "update"
	Question *models.Question `json:"question"`
}

// Handler runs the Q&A flow: attendees ask, moderators vet.
type Handler struct {
	store  Store
	hub    realtime.Broadcaster
	logger *zap.Logger
}

// NewHandler creates a questions handler.
func NewHandler(store Store, hub realtime.Broadcaster, logger *zap.Logger) *Handler {
	return &Handler{store: store, hub: hub, logger: logger}
}

// Ask handles POST /engage/session/:sessionId/questions. Content is trimmed
// and must be non-empty; nothing is written before validation passes.
func (h *Handler) Ask(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		response.BadRequest(c, "content is required")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	exists, err := h.store.SessionExists(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("session lookup", zap.Error(err))
		response.Internal(c, "failed to create question")
		return
	}
	if !exists {
		response.NotFound(c, "session not found")
		return
	}

	q, err := h.store.Create(c.Request.Context(), sessionID, userID, content)
	if err != nil {
		h.logger.Error("create question", zap.Error(err))
		response.Internal(c, "failed to create question")
		return
	}

	if err := h.hub.Broadcast(realtime.SessionRoom(sessionID), "sessionQuestions",
		QuestionUpdate{Type: "new", Question: q}); err != nil {
		h.logger.Warn("broadcast question", zap.Error(err))
	}
	response.Created(c, q)
}

// Moderate handles PATCH /engage/question/:questionId. Status must be one of
// pending/approved/declined; an edited content, when supplied, is trimmed.
func (h *Handler) Moderate(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("questionId"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}
	if !models.ValidQuestionStatus(req.Status) {
		response.BadRequest(c, "status must be pending, approved or declined")
		return
	}
	if req.EditedContent != nil {
		trimmed := strings.TrimSpace(*req.EditedContent)
		req.EditedContent = &trimmed
	}

	q, err := h.store.Update(c.Request.Context(), questionID, req.Status, req.EditedContent)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "question not found")
		return
	}
	if err != nil {
		h.logger.Error("update question", zap.Error(err), zap.String("question_id", questionID.String()))
		response.Internal(c, "failed to update question")
		return
	}

	if err := h.hub.Broadcast(realtime.SessionRoom(q.SessionID), "sessionQuestions",
		QuestionUpdate{Type: "update", Question: q}); err != nil {
		h.logger.Warn("broadcast question", zap.Error(err))
	}
	response.OK(c, q)
}

// List handles GET /engage/:sessionId/questions?status=.
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	status := models.QuestionStatus(c.Query("status"))
	if status != "" && !models.ValidQuestionStatus(status) {
		response.BadRequest(c, "status must be pending, approved or declined")
		return
	}

	exists, err := h.store.SessionExists(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("session lookup", zap.Error(err))
		response.Internal(c, "failed to list questions")
		return
	}
	if !exists {
		response.NotFound(c, "session not found")
		return
	}

	list, err := h.store.ListBySession(c.Request.Context(), sessionID, status)
	if err != nil {
		h.logger.Error("list questions", zap.Error(err))
		response.Internal(c, "failed to list questions")
		return
	}
	response.OK(c, gin.H{"questions": list})
}
