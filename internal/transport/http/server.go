package http

import (
	"github.com/gin-gonic/gin"

	"docchat/internal/bootstrap"
	"docchat/internal/transport/http/handler"
	"docchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	if app.Config.App.GinMode != "" {
		gin.SetMode(app.Config.App.GinMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), gin.Recovery())
	router.MaxMultipartMemory = app.Config.Upload.MaxSizeBytes

	healthHandler := handler.NewHealthHandler(app)
	documentHandler := handler.NewDocumentHandler(app.Documents, app.Threads, app.Conversations, app.Config.Upload.MaxSizeBytes)
	threadHandler := handler.NewThreadHandler(app.Threads, app.Documents, app.Conversations)
	chatHandler := handler.NewChatHandler(app.Chat, app.Conversations)

	router.GET("/healthz", healthHandler.Check)

	v1 := router.Group("/api/v1")
	if app.Config.Auth.Enabled {
		v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	}

	documentGroup := v1.Group("/documents")
	documentGroup.POST("", documentHandler.Upload)
	documentGroup.GET("", documentHandler.List)
	documentGroup.GET("/stats", documentHandler.Stats)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.PATCH("/:id/status", documentHandler.SetStatus)
	documentGroup.DELETE("/:id", documentHandler.Delete)
	documentGroup.GET("/:id/threads", documentHandler.Threads)

	threadGroup := v1.Group("/threads")
	threadGroup.GET("", threadHandler.List)
	threadGroup.GET("/stats", threadHandler.Stats)
	threadGroup.POST("/cleanup", threadHandler.Cleanup)
	threadGroup.GET("/:id", threadHandler.Get)
	threadGroup.GET("/:id/messages", threadHandler.Messages)
	threadGroup.PATCH("/:id", threadHandler.Rename)
	threadGroup.DELETE("/:id", threadHandler.Delete)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("/ask", chatHandler.Ask)
	chatGroup.POST("/new", chatHandler.New)
	chatGroup.POST("/resume", chatHandler.Resume)
	chatGroup.GET("/history", chatHandler.History)

	return router
}
