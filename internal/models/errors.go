package models

import "errors"

var (
	// ErrNetwork covers transport failures, timeouts and non-2xx replies.
	ErrNetwork = errors.New("network error")
	// ErrSchema means a reply did not have the expected shape.
	ErrSchema = errors.New("schema error")
	// ErrNotFound means a referenced facility is not in the current list.
	ErrNotFound = errors.New("not found")
)
