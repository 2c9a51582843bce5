package errors

import "fmt"

var (
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrInvalidRecord  = fmt.Errorf("invalid message record")
	ErrEmptyBody      = fmt.Errorf("message body is empty")
	ErrSubmitInFlight = fmt.Errorf("a submit is already in flight")
	ErrViewClosed     = fmt.Errorf("view is closed")
	ErrEmptyWords     = fmt.Errorf("no censored words have been found")
	ErrUnknownMessage = fmt.Errorf("unknown message id")
)

// FetchError reports a failed snapshot load. Code carries the
// backend-reported error code when one exists, so a misconfigured
// backend can be diagnosed from the logs alone.
type FetchError struct {
	Code    string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("snapshot fetch failed [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("snapshot fetch failed: %s", e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SubmitError reports a failed message write. It is the only error kind
// surfaced to the user, because resubmitting is actionable.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit failed: %s", e.Message)
}

func (e *SubmitError) Unwrap() error { return e.Err }
