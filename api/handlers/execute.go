package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/collab-code-share/backend/internal/executor"
	"github.com/collab-code-share/backend/internal/model"
)

// ExecuteHandler handles HTTP requests to run a code buffer.
type ExecuteHandler struct {
	orchestrator *executor.Orchestrator
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(orchestrator *executor.Orchestrator) *ExecuteHandler {
	return &ExecuteHandler{
		orchestrator: orchestrator,
	}
}

// ExecuteRequest represents the request body for running code.
type ExecuteRequest struct {
	Language  string `json:"language"`
	Code      string `json:"code"`
	Stdin     string `json:"stdin"`
	SessionID string `json:"sessionId"`
}

// Execute handles POST /api/execute - runs the buffer on the execution
// backend. When a session id is supplied the outcome is also fanned
// out to the session's room, so this response only surfaces
// request-level failures; participants render output from the room
// event.
func (h *ExecuteHandler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	language := req.Language
	if language == "" {
		language = model.DefaultLanguage
	}

	// A requester disconnect must not abort the poll loop; the rest of
	// the room still expects the real outcome.
	runCtx := context.WithoutCancel(c.Request.Context())
	result, err := h.orchestrator.Run(runCtx, req.SessionID, model.ExecutionRequest{
		Language: language,
		Code:     req.Code,
		Stdin:    req.Stdin,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrProviderMisconfigured):
			sendError(c, http.StatusInternalServerError, "PROVIDER_MISCONFIGURED", err.Error())
		case errors.Is(err, model.ErrExecutionTimeout):
			sendError(c, http.StatusInternalServerError, "EXECUTION_TIMEOUT", err.Error())
		default:
			sendError(c, http.StatusInternalServerError, "EXECUTION_FAILED", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"language": language,
		"result":   result,
	})
}

// RegisterRoutes registers the execute handler routes on a Gin router group.
func (h *ExecuteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/execute", h.Execute)
}
