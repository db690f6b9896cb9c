package http

import (
	"net/http"
	"time"

	"shabbat-mode/domain/dto"
	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"
	"shabbat-mode/infrastructure/logger"
	"shabbat-mode/usecase"

	"github.com/gin-gonic/gin"
)

type IScheduleSettingsHandler interface {
	Get(ctx *gin.Context)
	Put(ctx *gin.Context)
}

type ScheduleSettingsHandler struct {
	settings        repository.IScheduleSettings
	engine          usecase.ISchedulerEngine
	defaultLocation string
	defaultTimezone string
}

func NewScheduleSettingsHandler(settings repository.IScheduleSettings, engine usecase.ISchedulerEngine, defaultLocation, defaultTimezone string) IScheduleSettingsHandler {
	return &ScheduleSettingsHandler{
		settings:        settings,
		engine:          engine,
		defaultLocation: defaultLocation,
		defaultTimezone: defaultTimezone,
	}
}

func (h *ScheduleSettingsHandler) available(ctx *gin.Context) bool {
	if h.settings == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "schedule settings store unavailable"})
		return false
	}
	return true
}

// Get handles GET /api/schedule/settings. Users without saved settings see the defaults.
func (h *ScheduleSettingsHandler) Get(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok || !h.available(ctx) {
		return
	}
	s, err := h.settings.Get(ctx.Request.Context(), userID)
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{"user_id": userID, "error": err.Error()}).Error("Error while loading schedule settings")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if s == nil {
		ctx.JSON(http.StatusOK, gin.H{
			"configured": false,
			"settings": &model.ScheduleSettings{
				UserID:        userID,
				LocationID:    h.defaultLocation,
				Timezone:      h.defaultTimezone,
				HideOffset:    model.HideOffset30Min,
				RestoreOffset: model.RestoreImmediate,
				Enabled:       h.defaultLocation != "",
			},
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"configured": true, "settings": s})
}

// Put handles PUT /api/schedule/settings and re-derives the pending hide
func (h *ScheduleSettingsHandler) Put(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok || !h.available(ctx) {
		return
	}
	var req dto.ScheduleSettingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "locationId is required"})
		return
	}
	hide, err := model.ParseHideOffset(req.HideOffset)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	restore, err := model.ParseRestoreOffset(req.RestoreOffset)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "unknown timezone " + req.Timezone})
			return
		}
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	s := &model.ScheduleSettings{
		UserID:        userID,
		LocationID:    req.LocationID,
		Timezone:      req.Timezone,
		HideOffset:    hide,
		RestoreOffset: restore,
		Enabled:       enabled,
	}

	lg := logger.GetLogger().WithField("user_id", userID)
	if err := h.settings.Save(ctx.Request.Context(), s); err != nil {
		lg.WithField("error", err.Error()).Error("Error while saving schedule settings")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rescheduled := true
	if err := h.engine.Reschedule(ctx.Request.Context(), userID); err != nil {
		rescheduled = false
		lg.WithField("error", err.Error()).Warn("Settings saved but reschedule failed")
	}
	ctx.JSON(http.StatusOK, gin.H{"settings": s, "rescheduled": rescheduled})
}
