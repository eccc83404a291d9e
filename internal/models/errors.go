package models

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits the (source_name, external_id) unique key.
	ErrDuplicate = errors.New("duplicate opportunity")
	// ErrStoreUnavailable wraps connection loss and timeouts. A batch stops on it.
	ErrStoreUnavailable = errors.New("store unavailable")
)
