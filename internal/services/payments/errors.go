package payments

import "fmt"

// Error kinds reported to callers of Enqueue and GetSummary.
const (
	KindInvalidRequest   = "invalid_request"
	KindInvalidTimeRange = "invalid_time_range"
	KindStoreUnavailable = "store_unavailable"
)

type Error struct {
	Kind    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
