package http

import (
	"net/http"
	"strconv"

	"shabbat-mode/domain/dto"
	"shabbat-mode/domain/model"
	"shabbat-mode/infrastructure/logger"
	"shabbat-mode/usecase"

	"github.com/gin-gonic/gin"
)

type IPrivacyStatusHandler interface {
	ToggleLock(ctx *gin.Context)
	List(ctx *gin.Context)
}

type PrivacyStatusHandler struct {
	tracker usecase.IPrivacyTracker
}

func NewPrivacyStatusHandler(tracker usecase.IPrivacyTracker) IPrivacyStatusHandler {
	return &PrivacyStatusHandler{tracker: tracker}
}

// ToggleLock handles POST /api/privacy-status/toggle-lock
func (h *PrivacyStatusHandler) ToggleLock(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req dto.ToggleLockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "platform and contentId are required"})
		return
	}
	platform, err := model.ParsePlatform(req.Platform)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := h.tracker.ToggleLock(ctx.Request.Context(), userID, platform, req.ContentID)
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"user_id":    userID,
			"platform":   platform,
			"content_id": req.ContentID,
			"error":      err.Error(),
		}).Error("Error while toggling lock")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, status)
}

// List handles GET /api/privacy-status?platform=youtube[&changed=true]
func (h *PrivacyStatusHandler) List(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, err := model.ParsePlatform(ctx.Query("platform"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	changedOnly, _ := strconv.ParseBool(ctx.DefaultQuery("changed", "false"))

	var statuses []*model.PrivacyStatus
	if changedOnly {
		statuses, err = h.tracker.ListChanged(ctx.Request.Context(), userID, platform)
	} else {
		statuses, err = h.tracker.List(ctx.Request.Context(), userID, platform)
	}
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while listing privacy statuses")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if statuses == nil {
		statuses = []*model.PrivacyStatus{}
	}
	ctx.JSON(http.StatusOK, gin.H{"data": statuses, "count": len(statuses)})
}
