package ncbi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRemoteService is the sentinel matched by every RemoteServiceError.
var ErrRemoteService = errors.New("remote service error")

// RemoteServiceError reports a failed exchange with an E-utilities endpoint:
// transport failure, non-success status, oversized or unparseable body.
type RemoteServiceError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *RemoteServiceError) Error() string {
	msg := "NCBI " + e.Endpoint
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		msg += fmt.Sprintf(" returned HTTP %d", e.StatusCode)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + " failed"
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *RemoteServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteService}
	}
	return []error{ErrRemoteService, e.Err}
}

// Remote wraps err as a RemoteServiceError for endpoint. Errors that already
// are RemoteServiceErrors are returned unchanged.
func Remote(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	var rse *RemoteServiceError
	if errors.As(err, &rse) {
		return err
	}
	return &RemoteServiceError{Endpoint: endpoint, Err: err}
}
