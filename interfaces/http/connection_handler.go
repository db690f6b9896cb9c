package http

import (
	"net/http"

	"shabbat-mode/domain/model"
	"shabbat-mode/infrastructure/logger"
	"shabbat-mode/usecase"

	"github.com/gin-gonic/gin"
)

type IConnectionHandler interface {
	Create(ctx *gin.Context)
	List(ctx *gin.Context)
	Delete(ctx *gin.Context)
}

type ConnectionHandler struct {
	vault  usecase.ITokenVault
	engine usecase.ISchedulerEngine
}

func NewConnectionHandler(vault usecase.ITokenVault, engine usecase.ISchedulerEngine) IConnectionHandler {
	return &ConnectionHandler{vault: vault, engine: engine}
}

// Create handles POST /api/connections/:platform with the tokens delivered by the OAuth layer.
// A stored connection is scheduled right away.
func (h *ConnectionHandler) Create(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, err := model.ParsePlatform(ctx.Param("platform"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var token model.OAuthToken
	if err := ctx.ShouldBindJSON(&token); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "access_token is required"})
		return
	}

	lg := logger.GetLogger().WithFields(map[string]interface{}{"user_id": userID, "platform": platform})
	conn, err := h.vault.Store(ctx.Request.Context(), userID, platform, &token)
	if err != nil {
		lg.WithField("error", err.Error()).Error("Error while storing connection")
		ctx.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	scheduled := true
	if err := h.engine.EnsureScheduled(ctx.Request.Context(), userID, platform); err != nil {
		// the idle recheck picks the connection up later
		scheduled = false
		lg.WithField("error", err.Error()).Warn("Connection stored but not scheduled")
	}
	lg.Info("Platform connected")
	ctx.JSON(http.StatusCreated, gin.H{"connection": conn, "scheduled": scheduled})
}

// List handles GET /api/connections
func (h *ConnectionHandler) List(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	conns, err := h.vault.ListByUser(ctx.Request.Context(), userID)
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{"user_id": userID, "error": err.Error()}).Error("Error while listing connections")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if conns == nil {
		conns = []*model.PlatformConnection{}
	}
	ctx.JSON(http.StatusOK, gin.H{"data": conns})
}

// Delete handles DELETE /api/connections/:platform. Pending operations go first so the
// dispatcher never fires against a removed credential.
func (h *ConnectionHandler) Delete(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	platform, err := model.ParsePlatform(ctx.Param("platform"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lg := logger.GetLogger().WithFields(map[string]interface{}{"user_id": userID, "platform": platform})
	if err := h.engine.Cancel(ctx.Request.Context(), userID, platform); err != nil {
		lg.WithField("error", err.Error()).Error("Error while cancelling pending operations")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.vault.Remove(ctx.Request.Context(), userID, platform); err != nil {
		lg.WithField("error", err.Error()).Error("Error while removing connection")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	lg.Info("Platform disconnected")
	ctx.JSON(http.StatusOK, gin.H{"disconnected": true, "platform": platform})
}
