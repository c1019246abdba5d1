package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cortex-rag/internal/bootstrap"
	"cortex-rag/internal/transport/http/handler"
	"cortex-rag/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	notebookHandler := handler.NewNotebookHandler(app.Notebooks)
	ingestHandler := handler.NewIngestHandler(
		app.Notebooks,
		app.Ingest,
		app.Keyring,
		app.Publisher,
		app.Config.MaxUploadBytes(),
		app.Config.App.UploadDir,
		app.Log,
	)
	chatHandler := handler.NewChatHandler(app.Chat, app.Keyring)
	userKeyHandler := handler.NewUserKeyHandler(app.Keyring, app.Notebooks)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	v1.GET("/notebooks", notebookHandler.List)
	v1.POST("/notebooks", notebookHandler.Create)
	v1.GET("/notebooks/:id", notebookHandler.Get)
	v1.PUT("/notebooks/:id", notebookHandler.Rename)
	v1.DELETE("/notebooks/:id", notebookHandler.Delete)
	v1.DELETE("/notebooks/:id/files/:filename", notebookHandler.DeleteFile)

	v1.POST("/user/gemini-key", userKeyHandler.SaveKey)
	v1.DELETE("/user/gemini-key", userKeyHandler.DeleteKey)
	v1.DELETE("/purge-account", userKeyHandler.PurgeAccount)

	// The routes that spend model quota share the per-user limiter.
	limited := v1.Group("")
	limited.Use(middleware.RateLimit(app.Limiter))
	limited.POST("/upload", ingestHandler.Upload)
	limited.POST("/ingest-url", ingestHandler.IngestURL)
	limited.POST("/chat", chatHandler.Chat)

	return router
}
