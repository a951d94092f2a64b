// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/collab-code-share/backend/internal/model"
	"github.com/collab-code-share/backend/internal/repository"
	"github.com/collab-code-share/backend/internal/store"
)

// SessionHandler handles HTTP requests for collaboration sessions.
type SessionHandler struct {
	store *store.Store
	runs  *repository.RunRepository
}

// NewSessionHandler creates a new SessionHandler. The run repository
// is optional; without it the runs route reports empty archives.
func NewSessionHandler(sessions *store.Store, runs *repository.RunRepository) *SessionHandler {
	return &SessionHandler{
		store: sessions,
		runs:  runs,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// Create handles POST /api/session - creates a new session.
// Both body fields are optional and the body itself may be absent.
func (h *SessionHandler) Create(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	session, err := h.store.Create(req)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": session.ID})
}

// Get handles GET /api/session/:id - fetches a session snapshot.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")

	session, err := h.store.Get(sessionID)
	if err != nil {
		sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       session.ID,
		"language": session.Language,
		"code":     session.Code,
	})
}

// ListRuns handles GET /api/session/:id/runs - lists archived runs.
func (h *SessionHandler) ListRuns(c *gin.Context) {
	sessionID := c.Param("id")

	if _, err := h.store.Get(sessionID); err != nil {
		sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
		return
	}

	runs := []*model.Run{}
	if h.runs != nil {
		archived, err := h.runs.ListBySession(c.Request.Context(), sessionID)
		if err != nil {
			sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs: "+err.Error())
			return
		}
		if archived != nil {
			runs = archived
		}
	}

	c.JSON(http.StatusOK, runs)
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/session", h.Create)
	rg.GET("/session/:id", h.Get)
	rg.GET("/session/:id/runs", h.ListRuns)
}
