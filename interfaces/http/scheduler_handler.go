package http

import (
	"errors"
	"net/http"

	"shabbat-mode/domain/dto"
	"shabbat-mode/domain/model"
	"shabbat-mode/infrastructure/logger"
	"shabbat-mode/usecase"

	"github.com/gin-gonic/gin"
)

type ISchedulerHandler interface {
	Status(ctx *gin.Context)
	TestHide(ctx *gin.Context)
	TestRestore(ctx *gin.Context)
	Stream(ctx *gin.Context)
}

// IStreamer serves the live operation feed
type IStreamer interface {
	Serve(ctx *gin.Context)
}

type SchedulerHandler struct {
	engine   usecase.ISchedulerEngine
	streamer IStreamer
}

func NewSchedulerHandler(engine usecase.ISchedulerEngine, streamer IStreamer) ISchedulerHandler {
	return &SchedulerHandler{engine: engine, streamer: streamer}
}

// currentUser reads the id set by the auth middleware and answers 401 when absent.
func currentUser(ctx *gin.Context) (string, bool) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return "", false
	}
	return userID, true
}

// errorStatus maps usecase errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrCredentialMissing):
		return http.StatusNotFound
	case errors.Is(err, model.ErrCredentialInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrTransientPlatform):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrSchedulingConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *SchedulerHandler) Status(ctx *gin.Context) {
	status, err := h.engine.Status(ctx.Request.Context())
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while loading scheduler status")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, status)
}

func (h *SchedulerHandler) TestHide(ctx *gin.Context) {
	h.testRun(ctx, model.OperationHide)
}

func (h *SchedulerHandler) TestRestore(ctx *gin.Context) {
	h.testRun(ctx, model.OperationRestore)
}

func (h *SchedulerHandler) testRun(ctx *gin.Context, kind model.OperationKind) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req dto.TestRunRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	var platforms []model.Platform
	if req.Platform != "" {
		p, err := model.ParsePlatform(req.Platform)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		platforms = append(platforms, p)
	}

	resp, err := h.engine.RunNow(ctx.Request.Context(), userID, platforms, kind, req.ExceptIDs)
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"user_id": userID,
			"action":  kind,
			"error":   err.Error(),
		}).Warn("Test run failed")
		ctx.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func (h *SchedulerHandler) Stream(ctx *gin.Context) {
	if h.streamer == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates disabled"})
		return
	}
	h.streamer.Serve(ctx)
}
