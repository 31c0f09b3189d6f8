package handlers

import (
	"net/http"
	"strings"

	"fleetwise/web/middleware"
	"fleetwise/web/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ChatHandler struct {
	chat     *services.ChatService
	sessions *services.SessionService
	logger   *zap.Logger
}

type ChatRequest struct {
	Message string `json:"message" form:"message"`
}

func NewChatHandler(chat *services.ChatService, sessions *services.SessionService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:     chat,
		sessions: sessions,
		logger:   logger,
	}
}

// SendMessage answers one chat turn. Failures inside the pipeline never
// surface here; the response is always an answer.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		respondWithClientError(c, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	sessionID := c.MustGet(middleware.SessionContextKey).(uuid.UUID)
	resp := h.chat.HandleMessage(c.Request.Context(), sessionID, message)
	c.JSON(http.StatusOK, resp)
}

// Reset clears the session's conversation and order draft.
func (h *ChatHandler) Reset(c *gin.Context) {
	sessionID := c.MustGet(middleware.SessionContextKey).(uuid.UUID)
	if err := h.sessions.Reset(c.Request.Context(), sessionID); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not reset chat", h.logger,
			zap.String("session_id", sessionID.String()))
		return
	}
	c.Status(http.StatusNoContent)
}
