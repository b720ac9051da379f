package httpapi

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/classroom_bot/internal/service"
	"github.com/Freeeeeet/classroom_bot/internal/tracker"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// fail переводит ошибки сервисов в HTTP-ответ
func (h *handler) fail(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		conflictErr   *service.ConflictError
		notFoundErr   *service.NotFoundError
		storageErr    *service.TransientStorageError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"reasons": validationErr.Reasons,
		})
	case errors.As(err, &conflictErr):
		body := gin.H{
			"error":   "conflict",
			"reasons": conflictErr.Reasons,
		}
		if len(conflictErr.ConflictingSlotIDs) > 0 {
			body["conflicting_slot_ids"] = conflictErr.ConflictingSlotIDs
		}
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &storageErr):
		h.Logger.Warn("Transient storage failure", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":    "storage temporarily unavailable, retry later",
			"archived": storageErr.Archived,
		})
	case errors.Is(err, tracker.ErrTickInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.Logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
