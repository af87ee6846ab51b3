// handlers_screen.go - Clusters screen operation handlers
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/doc-clustering/clusterview/internal/models"
	"github.com/doc-clustering/clusterview/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEApplicationMsgpack selects the binary state encoding
const MIMEApplicationMsgpack = "application/msgpack"

// ScreenHandlerImpl implements the ScreenHandler interface
type ScreenHandlerImpl struct {
	screens ScreenManager
}

// NewScreenHandler creates a new screen handler instance
func NewScreenHandler(screens ScreenManager) ScreenHandler {
	return &ScreenHandlerImpl{screens: screens}
}

type selectRequest struct {
	Category string `json:"category"`
	Filename string `json:"filename"`
}

func (r *selectRequest) validate() error {
	if r.Category == "" {
		return NewValidationError("category")
	}
	if r.Filename == "" {
		return NewValidationError("filename")
	}
	return nil
}

type messageResponse struct {
	Message string              `json:"message"`
	State   *models.ScreenState `json:"state,omitempty"`
}

// HandleOpenScreen opens a screen and starts its poll loop
func (h *ScreenHandlerImpl) HandleOpenScreen(c echo.Context) error {
	state := h.screens.Open()
	return c.JSON(http.StatusCreated, state)
}

// HandleGetScreen returns the screen state. With ?since=N the request waits
// until the state version passes N, or the long-poll timeout ends it.
func (h *ScreenHandlerImpl) HandleGetScreen(c echo.Context) error {
	id := c.Param("id")

	var state models.ScreenState
	var err error
	if since := c.QueryParam("since"); since != "" {
		version, perr := strconv.ParseUint(since, 10, 64)
		if perr != nil {
			return NewValidationError("since")
		}
		state, err = h.wait(c.Request().Context(), id, version)
	} else {
		state, err = h.screens.Get(id)
	}
	if err != nil {
		return translateError(err, id, "")
	}

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack) {
		data, err := msgpack.Marshal(&state)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *ScreenHandlerImpl) wait(ctx context.Context, id string, since uint64) (models.ScreenState, error) {
	ctx, cancel := context.WithTimeout(ctx, longPollTimeout)
	defer cancel()

	state, err := h.screens.Wait(ctx, id, since)
	if errors.Is(err, context.DeadlineExceeded) {
		return h.screens.Get(id)
	}
	return state, err
}

// HandleCloseScreen tears a screen down
func (h *ScreenHandlerImpl) HandleCloseScreen(c echo.Context) error {
	id := c.Param("id")
	if err := h.screens.Close(id); err != nil {
		return translateError(err, id, "")
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleRefresh re-fetches the listing once. A failed fetch is reported in
// the returned state, not as an HTTP error.
func (h *ScreenHandlerImpl) HandleRefresh(c echo.Context) error {
	id := c.Param("id")
	if err := h.screens.Refresh(c.Request().Context(), id); errors.Is(err, session.ErrScreenNotFound) {
		return translateError(err, id, "")
	}

	state, err := h.screens.Get(id)
	if err != nil {
		return translateError(err, id, "")
	}
	return c.JSON(http.StatusOK, state)
}

// HandleSummarize generates summaries for a category and returns the
// re-fetched state
func (h *ScreenHandlerImpl) HandleSummarize(c echo.Context) error {
	id := c.Param("id")
	category := pathParam(c, "category")
	if category == "" {
		return NewValidationError("category")
	}

	if err := h.screens.Summarize(c.Request().Context(), id, category); err != nil {
		if errors.Is(err, session.ErrScreenNotFound) {
			return translateError(err, id, "")
		}
		return NewBadGatewayError(session.MsgSummarizeFailed, err)
	}

	state, err := h.screens.Get(id)
	if err != nil {
		return translateError(err, id, "")
	}
	return c.JSON(http.StatusOK, messageResponse{Message: session.MsgSummarized, State: &state})
}

// HandleSelect dispatches a file click and tells the page what to do next
func (h *ScreenHandlerImpl) HandleSelect(c echo.Context) error {
	id := c.Param("id")

	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	action, err := h.screens.Select(c.Request().Context(), id, req.Category, req.Filename)
	if err != nil {
		if errors.Is(err, session.ErrScreenNotFound) {
			return translateError(err, id, "")
		}
		return NewBadGatewayError(session.MsgFileLoadFailed, err)
	}
	return c.JSON(http.StatusOK, action)
}

// HandleCloseViewer clears the selection and releases its blob
func (h *ScreenHandlerImpl) HandleCloseViewer(c echo.Context) error {
	id := c.Param("id")
	if err := h.screens.CloseViewer(id); err != nil {
		return translateError(err, id, "")
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleViewerFailed handles a PDF the page could not render
func (h *ScreenHandlerImpl) HandleViewerFailed(c echo.Context) error {
	id := c.Param("id")
	action, err := h.screens.ReportViewerFailure(id)
	if errors.Is(err, session.ErrNoSelection) {
		return NewConflictError("no file is being viewed")
	}
	if err != nil {
		return translateError(err, id, "")
	}
	return c.JSON(http.StatusOK, action)
}
