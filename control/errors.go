package control

import (
	"net/http"

	"github.com/go-chi/render"
)

// ErrResponse is the standard go-chi/render error body: an HTTP status
// plus an application-level error code and message.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	AppCode    int64  `json:"code,omitempty"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// ErrInvalidRequest wraps a request-binding/validation error as a 400.
func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "invalid request",
		ErrorText:      err.Error(),
	}
}

// ErrRender wraps an unexpected rendering/processing error as a 422.
func ErrRender(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnprocessableEntity,
		StatusText:     "error rendering response",
		ErrorText:      err.Error(),
	}
}

// ErrPermissionDenied wraps an authorization failure as a 403.
func ErrPermissionDenied(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusForbidden,
		StatusText:     "permission denied",
		ErrorText:      err.Error(),
	}
}

// ErrUnauthorized wraps a missing/invalid credential as a 401.
func ErrUnauthorized(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnauthorized,
		StatusText:     "unauthorized",
		ErrorText:      err.Error(),
	}
}

// ErrNotFound is a plain 404, with no underlying error to echo back.
var ErrNotFound = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "resource not found"}
