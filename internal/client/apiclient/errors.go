package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
)

var (
	ErrUnavailable      = errors.New("host unavailable")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrMissingSession   = fmt.Errorf("%w: missing session", common.ErrConfig)
)

// StatusError is returned for every non-2xx response. It unwraps to the
// sentinel matching the status, so callers can use errors.Is(err, common.ErrUnauthorized).
type StatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.Err, e.StatusCode)
	}
	return fmt.Sprintf("%v (status %d): %s", e.Err, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

const maxErrorMessage = 256

func mapError(resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var sentinel error
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		sentinel = common.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		sentinel = common.ErrNotFound
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusPreconditionFailed:
		sentinel = common.ErrVersionConflict
	case resp.StatusCode == http.StatusBadRequest:
		sentinel = common.ErrBadRequest
	case resp.StatusCode >= 500:
		sentinel = ErrUnavailable
	default:
		sentinel = ErrUnexpectedStatus
	}

	msg := string(resp.Body)
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg, Err: sentinel}
}
