// handlers_pages.go - Upload, clusters and text screen handlers
package api

import (
	"errors"
	"net/http"

	"github.com/doc-clustering/clusterview/internal/backend"
	"github.com/doc-clustering/clusterview/internal/models"
	"github.com/doc-clustering/clusterview/internal/upload"
	"github.com/doc-clustering/clusterview/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// MsgTextLoadFailed is shown by the text screen when the file cannot be read
const MsgTextLoadFailed = "Failed to load text file. Please try again."

// PageHandlerImpl implements the PageHandler interface
type PageHandlerImpl struct {
	screens  ScreenManager
	files    FileSource
	uploads  UploadSubmitter
	spoolDir string
	version  string
}

// NewPageHandler creates a new page handler instance
func NewPageHandler(screens ScreenManager, files FileSource, uploads UploadSubmitter, spoolDir, version string) PageHandler {
	return &PageHandlerImpl{
		screens:  screens,
		files:    files,
		uploads:  uploads,
		spoolDir: spoolDir,
		version:  version,
	}
}

type uploadResponse struct {
	Message  string      `json:"message"`
	Redirect string      `json:"redirect,omitempty"`
	Job      *upload.Job `json:"job,omitempty"`
}

func (h *PageHandlerImpl) page(title string) web.PageData {
	return web.PageData{Title: title, Version: h.version}
}

// HandleIndex renders the upload screen
func (h *PageHandlerImpl) HandleIndex(c echo.Context) error {
	return c.Render(http.StatusOK, web.PageUpload, web.UploadPageData{PageData: h.page("Upload")})
}

// HandleUpload forwards the submitted files to the backend. Script clients
// asking for JSON get the alert text and redirect target; plain form posts
// are redirected or shown the upload screen again with the alert.
func (h *PageHandlerImpl) HandleUpload(c echo.Context) error {
	sel, err := h.readSelection(c)
	if err != nil {
		return err
	}
	defer sel.Close()

	job, err := h.uploads.Submit(c.Request().Context(), sel)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, upload.ErrNoFiles) {
			status = http.StatusBadRequest
		}
		return h.uploadFailed(c, status, upload.FailureMessage(err), job)
	}

	redirect := "/clusters?upload=" + job.ID
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, uploadResponse{Message: upload.MsgUploaded, Redirect: redirect, Job: job})
	}
	return c.Redirect(http.StatusSeeOther, redirect)
}

// readSelection spools the multipart body. A request that is not multipart
// carries no files.
func (h *PageHandlerImpl) readSelection(c echo.Context) (*upload.Selection, error) {
	mr, err := c.Request().MultipartReader()
	if err != nil {
		return &upload.Selection{}, nil
	}
	sel, err := upload.FromMultipart(mr, backend.UploadField, h.spoolDir)
	if err != nil {
		return nil, NewBadRequestError("invalid upload", err)
	}
	return sel, nil
}

func (h *PageHandlerImpl) uploadFailed(c echo.Context, status int, message string, job *upload.Job) error {
	if wantsJSON(c) {
		return c.JSON(status, uploadResponse{Message: message, Job: job})
	}

	data := web.UploadPageData{PageData: h.page("Upload")}
	data.Alert = message
	if job != nil {
		data.LastUpload = &web.UploadSummary{
			FileCount:   job.FileCount,
			TotalBytes:  job.TotalBytes,
			SubmittedAt: job.CreatedAt,
		}
	}
	return c.Render(status, web.PageUpload, data)
}

// HandleClusters opens a new screen and renders it. The screen lives until
// the page's WebSocket closes or it is reaped as idle.
func (h *PageHandlerImpl) HandleClusters(c echo.Context) error {
	state := h.screens.Open()

	data := web.ClustersPageData{PageData: h.page("Clusters"), State: state}
	if id := c.QueryParam("upload"); id != "" {
		if job, ok := h.uploads.GetJob(id); ok && job.Status == upload.StatusComplete {
			data.Flash = upload.MsgUploaded
		}
	}
	return c.Render(http.StatusOK, web.PageClusters, data)
}

// HandleText renders a file on the dedicated text screen. The file is
// fetched on every render.
func (h *PageHandlerImpl) HandleText(c echo.Context) error {
	category := pathParam(c, "category")
	filename := pathParam(c, "filename")

	data := web.TextPageData{
		PageData: h.page(filename),
		Category: category,
		Filename: filename,
	}

	f, err := h.files.FetchFile(c.Request().Context(), category, filename)
	if err != nil {
		log.Warnf("[Text] Fetch %s failed: %v", models.FilePath(category, filename), err)
		data.Error = MsgTextLoadFailed
	} else {
		data.Content = string(f.Data)
	}
	return c.Render(http.StatusOK, web.PageText, data)
}
