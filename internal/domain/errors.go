package domain

import "errors"

// Domain errors.
var (
	// ErrFeedUnavailable is returned when the feed batch fetch fails; the
	// whole invocation aborts with no partial state changes.
	ErrFeedUnavailable = errors.New("feed unavailable")

	// ErrRateLimited is returned when an external service rate-limits us.
	ErrRateLimited = errors.New("rate limited")

	// ErrResolutionFailed is returned when the browser ladder exhausts
	// every strategy without a match.
	ErrResolutionFailed = errors.New("media resolution failed")

	// ErrDeliveryRejected is returned when the delivery sink refuses a payload.
	ErrDeliveryRejected = errors.New("delivery rejected by sink")

	// ErrStoreUnavailable is returned when the reservation store fails.
	ErrStoreUnavailable = errors.New("reservation store unavailable")
)

// PostError wraps an error with the post it occurred on.
type PostError struct {
	Key PostKey
	Op  string
	Err error
}

func (e *PostError) Error() string {
	if e.Key != "" {
		return e.Op + " [" + e.Key.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *PostError) Unwrap() error {
	return e.Err
}

// NewPostError creates a new PostError.
func NewPostError(key PostKey, op string, err error) *PostError {
	return &PostError{Key: key, Op: op, Err: err}
}
