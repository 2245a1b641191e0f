package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuslink/portal-sync/internal/api/dto"
	"github.com/campuslink/portal-sync/internal/portal"
)

// SaveCredentials handles POST /api/v1/credentials
// Caches the user's portal credentials for upcoming sync jobs. The
// cache entry expires on its own; a job that finds no entry fails with
// a session-expired error and the user re-submits.
func (h *SyncHandler) SaveCredentials(c *gin.Context) {
	var req dto.SaveCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	err := h.credentials.Save(c.Request.Context(), req.UserID, portal.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.logger.Error("Failed to cache credentials", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cache credentials",
		})
		return
	}

	h.logger.Info("Portal credentials cached",
		slog.Int64("user_id", req.UserID),
	)

	c.Status(http.StatusNoContent)
}
