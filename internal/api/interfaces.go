// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/doc-clustering/clusterview/internal/backend"
	"github.com/doc-clustering/clusterview/internal/models"
	"github.com/doc-clustering/clusterview/internal/session"
	"github.com/doc-clustering/clusterview/internal/upload"
	"github.com/labstack/echo/v4"
)

// PageHandler serves the three screens and the upload form target
type PageHandler interface {
	HandleIndex(c echo.Context) error
	HandleUpload(c echo.Context) error
	HandleClusters(c echo.Context) error
	HandleText(c echo.Context) error
}

// ScreenHandler handles clusters screen operations
type ScreenHandler interface {
	HandleOpenScreen(c echo.Context) error
	HandleGetScreen(c echo.Context) error
	HandleCloseScreen(c echo.Context) error
	HandleRefresh(c echo.Context) error
	HandleSummarize(c echo.Context) error
	HandleSelect(c echo.Context) error
	HandleCloseViewer(c echo.Context) error
	HandleViewerFailed(c echo.Context) error
}

// StreamHandler pushes screen state over a WebSocket
type StreamHandler interface {
	HandleScreenStream(c echo.Context) error
}

// FileHandler serves raw backend files and blob handles
type FileHandler interface {
	HandleRaw(c echo.Context) error
	HandleBlob(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// UploadJobHandler exposes upload job records
type UploadJobHandler interface {
	HandleGetUploadJob(c echo.Context) error
}

// ScreenManager defines the interface for screen management
// This allows mocking in tests
type ScreenManager interface {
	Open() models.ScreenState
	Get(id string) (models.ScreenState, error)
	Wait(ctx context.Context, id string, since uint64) (models.ScreenState, error)
	Watch(id string) (func(), error)
	Refresh(ctx context.Context, id string) error
	Summarize(ctx context.Context, id, category string) error
	Select(ctx context.Context, id, category, filename string) (*session.Action, error)
	CloseViewer(id string) error
	ReportViewerFailure(id string) (*session.Action, error)
	Close(id string) error
	Count() int
}

// FileSource reads files from the clustering backend
type FileSource interface {
	FetchFile(ctx context.Context, category, filename string) (*backend.File, error)
	OpenFile(ctx context.Context, category, filename string) (*http.Response, error)
}

// UploadSubmitter forwards selections and keeps their job records
type UploadSubmitter interface {
	Submit(ctx context.Context, sel *upload.Selection) (*upload.Job, error)
	GetJob(id string) (*upload.Job, bool)
}

// longPollTimeout bounds a state request that waits for a change
const longPollTimeout = 25 * time.Second
