// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/doc-clustering/clusterview/internal/backend"
	"github.com/doc-clustering/clusterview/internal/session"
	"github.com/doc-clustering/clusterview/internal/storage"
	"github.com/doc-clustering/clusterview/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewBadGatewayError creates a 502 error for a failed backend call. message
// is shown to the user as is.
func NewBadGatewayError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadGateway,
		Code:    "BAD_GATEWAY",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// translateError maps domain errors onto API errors. message is used when
// the backend is at fault.
func translateError(err error, id, message string) *APIError {
	if message == "" {
		message = "backend request failed"
	}
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, session.ErrScreenNotFound):
		return NewNotFoundError("screen", id)
	case errors.Is(err, storage.ErrBlobNotFound):
		return NewNotFoundError("blob", id)
	case backend.IsNotFound(err):
		return NewNotFoundError("file", id)
	}
	return NewBadGatewayError(message, err)
}

// NewErrorHandler returns an echo.HTTPErrorHandler. API routes answer with
// an APIError body; page requests from a browser get the error page.
// showDetails exposes the cause of unexpected errors.
func NewErrorHandler(showDetails bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError

		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = &APIError{
				Status:  httpErr.Code,
				Code:    "HTTP_ERROR",
				Message: fmt.Sprintf("%v", httpErr.Message),
			}
			if httpErr.Code == http.StatusNotFound {
				apiErr.Code = "NOT_FOUND"
			}
		default:
			log.Errorf("[HTTP] %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
			apiErr = NewInternalError("An unexpected error occurred", nil)
			if showDetails {
				apiErr.Details = err.Error()
			}
		}

		if wantsPage(c) {
			data := web.ErrorPageData{
				PageData:   web.PageData{Title: "Error"},
				StatusCode: apiErr.Status,
				Message:    apiErr.Message,
			}
			if c.Render(apiErr.Status, web.PageError, data) == nil {
				return
			}
		}

		if c.Request().Method == http.MethodHead {
			c.NoContent(apiErr.Status)
			return
		}
		c.JSON(apiErr.Status, apiErr)
	}
}

// ErrorHandler is the error handler without error details.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	NewErrorHandler(false)(err, c)
}

func wantsPage(c echo.Context) bool {
	req := c.Request()
	if c.Echo().Renderer == nil || strings.HasPrefix(req.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}
