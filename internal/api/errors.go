package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// Sentinel errors for API failures.
var (
	ErrUnauthorized = errors.New("not authorized")
	ErrNotFound     = errors.New("resource not found")
)

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

const maxErrorBody = 512

func newHTTPError(method, path string, resp *resty.Response) *HTTPError {
	body := resp.String()
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return &HTTPError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode(),
		Body:       body,
	}
}
