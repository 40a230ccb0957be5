package directory

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested record does not exist in HUGWAWI.
var ErrNotFound = errors.New("directory: record not found")

// QueryError is returned for any transport or server failure of the
// backend. Detail carries the backend's human-readable message when one
// could be extracted from the response.
type QueryError struct {
	Status int
	Detail string
	cause  error
}

func (e *QueryError) Error() string {
	switch {
	case e.Status > 0 && e.Detail != "":
		return fmt.Sprintf("directory: query failed with status %d: %s", e.Status, e.Detail)
	case e.Status > 0:
		return fmt.Sprintf("directory: query failed with status %d", e.Status)
	case e.Detail != "":
		return fmt.Sprintf("directory: query failed: %s", e.Detail)
	default:
		return "directory: query failed"
	}
}

func (e *QueryError) Unwrap() error { return e.cause }
