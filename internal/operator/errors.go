package operator

import "errors"

var (
	// ErrMaximumRetryCount ends an event whose executor kept timing out.
	ErrMaximumRetryCount = errors.New("operator: maximum retry count reached")
	// ErrMissingParent means the parent folder is not tracked yet. Retry once it is.
	ErrMissingParent = errors.New("operator: missing parent")
	// ErrProgrammatic flags an executor run against what it cannot handle. Never retried.
	ErrProgrammatic = errors.New("operator: programmatic error")
)
