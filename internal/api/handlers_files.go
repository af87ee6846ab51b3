// handlers_files.go - Raw file proxy and blob handle handlers
package api

import (
	"mime"
	"net/http"
	"net/url"

	"github.com/doc-clustering/clusterview/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	files FileSource
	blobs storage.Store
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(files FileSource, blobs storage.Store) FileHandler {
	return &FileHandlerImpl{
		files: files,
		blobs: blobs,
	}
}

// HandleRaw streams a backend file to the browser, for files opened in a
// new tab
func (h *FileHandlerImpl) HandleRaw(c echo.Context) error {
	category := pathParam(c, "category")
	filename := pathParam(c, "filename")

	resp, err := h.files.OpenFile(c.Request().Context(), category, filename)
	if err != nil {
		return translateError(err, category+"/"+filename, "failed to fetch file from backend")
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	if resp.ContentLength > 0 {
		header.Set(echo.HeaderContentLength, resp.Header.Get(echo.HeaderContentLength))
	}
	return c.Stream(http.StatusOK, contentType, resp.Body)
}

// HandleBlob serves the content behind a blob handle
func (h *FileHandlerImpl) HandleBlob(c echo.Context) error {
	id := c.Param("id")

	f, handle, err := h.blobs.Open(id)
	if err != nil {
		return translateError(err, id, "")
	}
	defer f.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, handle.ContentType)
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": handle.Name}))
	header.Set("Cache-Control", "no-store")

	log.Debugf("[Blob %s] Serving %s (%d bytes)", shortID(id), handle.Name, handle.Size)
	http.ServeContent(c.Response(), c.Request(), handle.Name, handle.CreatedAt, f)
	return nil
}

// pathParam returns a route parameter unescaped. Echo hands out escaped
// values when the request path needed its raw form to route.
func pathParam(c echo.Context, name string) string {
	value := c.Param(name)
	if c.Request().URL.RawPath == "" {
		return value
	}
	if unescaped, err := url.PathUnescape(value); err == nil {
		return unescaped
	}
	return value
}
