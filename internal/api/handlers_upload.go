// handlers_upload.go - Upload job handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// UploadJobHandlerImpl implements the UploadJobHandler interface
type UploadJobHandlerImpl struct {
	uploads UploadSubmitter
}

// NewUploadJobHandler creates a new upload job handler instance
func NewUploadJobHandler(uploads UploadSubmitter) UploadJobHandler {
	return &UploadJobHandlerImpl{uploads: uploads}
}

// HandleGetUploadJob returns the record of a forwarded upload
func (h *UploadJobHandlerImpl) HandleGetUploadJob(c echo.Context) error {
	id := c.Param("id")
	job, ok := h.uploads.GetJob(id)
	if !ok {
		return NewNotFoundError("upload job", id)
	}
	return c.JSON(http.StatusOK, job)
}
