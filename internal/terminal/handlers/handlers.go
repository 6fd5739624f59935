// Package handlers exposes the terminal orchestrator over HTTP.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codingwatching/agor/internal/common/logger"
	"github.com/codingwatching/agor/internal/terminal/dto"
)

// TerminalService is the orchestrator surface the HTTP layer depends on.
type TerminalService interface {
	Create(ctx context.Context, req *dto.CreateTerminalRequest) (*dto.CreateTerminalResponse, error)
	Get(ctx context.Context, id string) (*dto.GetTerminalResponse, error)
	Find(ctx context.Context, userID string) []dto.TerminalSummary
	Patch(ctx context.Context, id string, req *dto.PatchTerminalRequest) error
	Remove(ctx context.Context, id string) error
}

// TerminalHandlers serves the /api/v1/terminals endpoints.
type TerminalHandlers struct {
	service TerminalService
	logger  *logger.Logger
}

// NewTerminalHandlers creates the HTTP handlers for terminal operations.
func NewTerminalHandlers(svc TerminalService, log *logger.Logger) *TerminalHandlers {
	return &TerminalHandlers{
		service: svc,
		logger:  log.WithFields(zap.String("component", "terminal_handlers")),
	}
}

// RegisterRoutes attaches the terminal endpoints to the router.
func (h *TerminalHandlers) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.httpHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/terminals", h.httpCreateTerminal)
		v1.GET("/terminals", h.httpFindTerminals)
		v1.GET("/terminals/:id", h.httpGetTerminal)
		v1.PATCH("/terminals/:id", h.httpPatchTerminal)
		v1.DELETE("/terminals/:id", h.httpRemoveTerminal)
	}
}

func (h *TerminalHandlers) httpHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "agor"})
}

func (h *TerminalHandlers) httpCreateTerminal(c *gin.Context) {
	var req dto.CreateTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	resp, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *TerminalHandlers) httpGetTerminal(c *gin.Context) {
	resp, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TerminalHandlers) httpFindTerminals(c *gin.Context) {
	terminals := h.service.Find(c.Request.Context(), c.Query("user_id"))
	c.JSON(http.StatusOK, dto.FindTerminalsResponse{
		Terminals: terminals,
		Total:     len(terminals),
	})
}

func (h *TerminalHandlers) httpPatchTerminal(c *gin.Context) {
	var req dto.PatchTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.service.Patch(c.Request.Context(), c.Param("id"), &req); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TerminalHandlers) httpRemoveTerminal(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
