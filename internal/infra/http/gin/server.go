package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"vinci/internal/infra/config"
	"vinci/internal/infra/obs"
)

type Handlers struct {
	Conversations      ConversationHTTP
	Notifications      NotificationHTTP
	Realtime           *RealtimeHandler
	IdentityMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-User-Id", "X-User-Roles"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.IdentityMiddleware != nil {
		router.Use(h.IdentityMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Conversations != nil {
		api.GET("/conversations", h.Conversations.List)
		api.POST("/conversations/direct", h.Conversations.StartDirect)
		api.POST("/conversations/requests", h.Conversations.RequestCollaboration)
		api.POST("/conversations/:id/accept", h.Conversations.Accept)
		api.POST("/conversations/:id/ignore", h.Conversations.Ignore)
		api.POST("/conversations/:id/messages", h.Conversations.SendMessage)
		api.GET("/conversations/:id/messages", h.Conversations.ListMessages)
		api.POST("/conversations/:id/read", h.Conversations.MarkRead)
	}
	if h.Notifications != nil {
		api.GET("/notifications", h.Notifications.List)
		api.POST("/notifications/read-all", h.Notifications.MarkAllRead)
		api.POST("/notifications/ack", h.Notifications.Acknowledge)
		api.POST("/notifications/:id/read", h.Notifications.MarkRead)
	}
	if h.Realtime != nil {
		api.GET("/ws", h.Realtime.Attach)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
