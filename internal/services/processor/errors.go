package processor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

var (
	ErrTimeout           = errors.New("payment processor timed out")
	ErrTransport         = errors.New("payment processor transport error")
	ErrUnexpectedStatus  = errors.New("payment processor returned a non-success status")
	ErrRateLimited       = errors.New("payment processor rate limited the request")
	ErrMalformedResponse = errors.New("malformed payment processor response")
)

// StatusError carries the HTTP status of a rejected call.
type StatusError struct {
	Processor  models.ProcessorType
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s processor returned status %d", e.Processor, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == 429 {
		return ErrRateLimited
	}
	return ErrUnexpectedStatus
}

// Failure kinds reported by Classify. They only feed diagnostics; every kind
// is the same failed attempt for the retry loop.
const (
	FailureTimeout   = "timeout"
	FailureTransport = "transport"
	FailureStatus    = "status"
	FailureMalformed = "malformed"
	FailureUnknown   = "unknown"
)

func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return FailureTimeout
	case errors.Is(err, ErrTransport):
		return FailureTransport
	case errors.Is(err, ErrUnexpectedStatus), errors.Is(err, ErrRateLimited):
		return FailureStatus
	case errors.Is(err, ErrMalformedResponse):
		return FailureMalformed
	}
	return FailureUnknown
}

func wrapTransportError(name models.ProcessorType, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, name, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrTransport, name, err)
}
