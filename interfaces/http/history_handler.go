package http

import (
	"net/http"
	"strconv"

	"shabbat-mode/domain/model"
	"shabbat-mode/infrastructure/logger"
	"shabbat-mode/usecase"

	"github.com/gin-gonic/gin"
)

type IHistoryHandler interface {
	Recent(ctx *gin.Context)
}

type HistoryHandler struct {
	recorder usecase.IHistoryRecorder
}

func NewHistoryHandler(recorder usecase.IHistoryRecorder) IHistoryHandler {
	return &HistoryHandler{recorder: recorder}
}

// Recent handles GET /api/history?limit=N, newest first
func (h *HistoryHandler) Recent(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	entries, err := h.recorder.Recent(ctx.Request.Context(), userID, limit)
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{"user_id": userID, "error": err.Error()}).Error("Error while loading history")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []*model.HistoryEntry{}
	}
	ctx.JSON(http.StatusOK, gin.H{"data": entries})
}
