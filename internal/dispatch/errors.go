package dispatch

import (
	"errors"
	"fmt"
)

// Error is returned when a product could not be delivered. Every Error is
// final from the caller's point of view: the client has already spent its
// retry budget (Exhausted) or decided the failure is not retryable.
type Error struct {
	SKU      string
	Method   string
	Status   int // last HTTP status, 0 for transport failures
	Attempts int
	// Exhausted marks a transient failure that outlived the retry budget,
	// as opposed to a non-retryable response.
	Exhausted bool
	Err       error
}

func (e *Error) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("dispatch_failed sku=%s %s status=%d after %d attempts: %v",
			e.SKU, e.Method, e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("dispatch_failed sku=%s %s status=%d (non-retryable): %v",
		e.SKU, e.Method, e.Status, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError unwraps err into a dispatch Error, if it is one.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
