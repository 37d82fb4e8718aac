package models

import "errors"

// Domain error sentinels. Anything else bubbling out of a service is an
// infrastructure failure and is wrapped, not swallowed, so callers can tell
// "your data is wrong" apart from "the system is broken".
var (
	// ErrNotFound means a referenced project, prompt, version or test case
	// does not exist. Fatal to the single operation, never retried.
	ErrNotFound = errors.New("not found")

	// ErrValidation means a mutating operation received malformed input
	// (e.g. an empty title). Rejected before any storage write.
	ErrValidation = errors.New("validation failed")
)
