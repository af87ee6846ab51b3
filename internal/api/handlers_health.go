// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/doc-clustering/clusterview/internal/storage"
	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	backend string
	screens ScreenManager
	blobs   storage.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, backendURL string, screens ScreenManager, blobs storage.Store) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		backend: backendURL,
		screens: screens,
		blobs:   blobs,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"backend": h.backend,
	}
	if h.screens != nil {
		resp["screens"] = h.screens.Count()
	}
	if h.blobs != nil {
		resp["blobs"] = h.blobs.Count()
	}
	return c.JSON(http.StatusOK, resp)
}
