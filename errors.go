package epochcache

import (
	"fmt"
)

// FetchError is returned by FetchPending when the source fails for an epoch.
// The failed epoch has already been removed from the pending set; callers that
// want another attempt must enqueue it again.
type FetchError struct {
	Epoch uint64
	Err   error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("epochcache: fetch epoch %d: unknown error", e.Epoch)
	}
	return fmt.Sprintf("epochcache: fetch epoch %d: %v", e.Epoch, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
