package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/codingwatching/agor/internal/common/errors"
	"github.com/codingwatching/agor/internal/common/logger"
	"github.com/codingwatching/agor/internal/terminal/service"
)

func handleServiceError(c *gin.Context, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrTerminalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "terminal not found"})
	case errors.Is(err, service.ErrWorktreeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "worktree not found"})
	case errors.Is(err, service.ErrSpawnFailed):
		log.Error("terminal spawn failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to spawn terminal"})
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				log.Error("request failed", zap.Error(err))
			}
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
			return
		}
		log.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
	}
}
