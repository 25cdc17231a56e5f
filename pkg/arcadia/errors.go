package arcadia

import (
	"errors"
	"fmt"
)

// ErrArcadia matches every error the client surfaces to callers, so a single
// errors.Is check handles all of them.
var ErrArcadia = errors.New("arcadia")

var (
	// ErrInvalidEndpoint is returned when the requested image type is not in the
	// endpoint catalog, even after a resync.
	ErrInvalidEndpoint = fmt.Errorf("%w: not a valid endpoint, see the list of available endpoints on arcadia-api.xyz", ErrArcadia)

	// ErrForbidden is returned for HTTP 403 responses.
	ErrForbidden = fmt.Errorf("%w: not allowed to access this resource", ErrArcadia)

	// ErrNotFound is returned for any other non-200 response. The concrete
	// error is a *NotFoundError carrying the status code.
	ErrNotFound = fmt.Errorf("%w: resource does not exist or is not accessible", ErrArcadia)
)

// NotFoundError describes a non-200, non-403 image response.
type NotFoundError struct {
	Endpoint   string
	StatusCode int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s (endpoint %q, status %d)", ErrNotFound.Error(), e.Endpoint, e.StatusCode)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
