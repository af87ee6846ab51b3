// routes.go - Route registration helpers
// This file provides a clean way to register all routes
package api

import (
	"net/http"

	"github.com/doc-clustering/clusterview/internal/storage"
	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Screens  ScreenManager
	Files    FileSource
	Blobs    storage.Store
	Uploads  UploadSubmitter
	SpoolDir string
	Backend  string
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Pages     PageHandler
	Screens   ScreenHandler
	Stream    StreamHandler
	Files     FileHandler
	UploadJob UploadJobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Backend, deps.Screens, deps.Blobs),
		Pages:     NewPageHandler(deps.Screens, deps.Files, deps.Uploads, deps.SpoolDir, deps.Version),
		Screens:   NewScreenHandler(deps.Screens),
		Stream:    NewStreamHandler(deps.Screens),
		Files:     NewFileHandler(deps.Files, deps.Blobs),
		UploadJob: NewUploadJobHandler(deps.Uploads),
	}
}

// RegisterRoutes registers all page and API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Screens
	e.GET("/", handlers.Pages.HandleIndex)
	e.POST("/upload", handlers.Pages.HandleUpload)
	e.GET("/clusters", handlers.Pages.HandleClusters)
	e.GET("/text/:category/:filename", handlers.Pages.HandleText)

	// File content
	e.GET("/raw/:category/:filename", handlers.Files.HandleRaw)
	e.GET("/blobs/:id", handlers.Files.HandleBlob)
	e.HEAD("/blobs/:id", handlers.Files.HandleBlob)

	api := e.Group("/api")
	api.GET("/health", handlers.Health.HandleHealth)
	api.GET("/uploads/:id", handlers.UploadJob.HandleGetUploadJob)

	// Clusters screen routes
	screenGroup := api.Group("/screens")
	screenGroup.POST("", handlers.Screens.HandleOpenScreen)
	screenGroup.GET("/:id", handlers.Screens.HandleGetScreen)
	screenGroup.DELETE("/:id", handlers.Screens.HandleCloseScreen)
	screenGroup.GET("/:id/ws", handlers.Stream.HandleScreenStream)
	screenGroup.POST("/:id/refresh", handlers.Screens.HandleRefresh)
	screenGroup.POST("/:id/summarize/:category", handlers.Screens.HandleSummarize)
	screenGroup.POST("/:id/select", handlers.Screens.HandleSelect)
	screenGroup.DELETE("/:id/selection", handlers.Screens.HandleCloseViewer)
	screenGroup.POST("/:id/selection/failed", handlers.Screens.HandleViewerFailed)
}

// QuietRoute reports routes whose request logs would drown out the rest:
// state long-polls, WebSocket streams and static assets.
func QuietRoute(c echo.Context) bool {
	path := c.Path()
	return (path == "/api/screens/:id" && c.Request().Method == http.MethodGet) ||
		path == "/api/screens/:id/ws" ||
		path == "/static/*" ||
		path == "/api/health"
}
