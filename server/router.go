package server

import (
	"time"

	httpHandler "shabbat-mode/interfaces/http"
	"shabbat-mode/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Scheduler        httpHandler.ISchedulerHandler
	PrivacyStatus    httpHandler.IPrivacyStatusHandler
	History          httpHandler.IHistoryHandler
	Connection       httpHandler.IConnectionHandler
	ScheduleSettings httpHandler.IScheduleSettingsHandler
	Health           httpHandler.IHealthHandler
}

func InitiateRouter(h Handlers, secretKey string, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			return origins[origin]
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/healthz", h.Health.Healthz)

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))

	api.GET("/scheduler/status", h.Scheduler.Status)
	api.POST("/scheduler/test-hide", h.Scheduler.TestHide)
	api.POST("/scheduler/test-restore", h.Scheduler.TestRestore)
	api.GET("/scheduler/stream", h.Scheduler.Stream)

	api.GET("/privacy-status", h.PrivacyStatus.List)
	api.POST("/privacy-status/toggle-lock", h.PrivacyStatus.ToggleLock)

	api.GET("/history", h.History.Recent)

	api.GET("/connections", h.Connection.List)
	api.POST("/connections/:platform", h.Connection.Create)
	api.DELETE("/connections/:platform", h.Connection.Delete)

	api.GET("/schedule/settings", h.ScheduleSettings.Get)
	api.PUT("/schedule/settings", h.ScheduleSettings.Put)

	return router
}
