package memo

import "fmt"

// InvalidateError reports a partially failed Invalidate.
// A failed bump with a successful delete still leaves older copies valid in
// other providers that share the generation store, so both causes are kept.
type InvalidateError struct {
	Epoch   uint64
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("memo: invalidate epoch %d: gen bump and delete failed: bump=%v; delete=%v",
			e.Epoch, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("memo: invalidate epoch %d: gen bump failed: %v", e.Epoch, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("memo: invalidate epoch %d: delete failed: %v", e.Epoch, e.DelErr)
	default:
		return fmt.Sprintf("memo: invalidate epoch %d: unknown error", e.Epoch)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
