package library

import "errors"

// The closed error taxonomy. Every operation that can fail for a business
// reason returns exactly one of these, usually wrapped with context via
// fmt.Errorf("...: %w", Err...). Callers match with errors.Is.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNoStock          = errors.New("no stock")
	ErrInvalidState     = errors.New("invalid state")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrIO               = errors.New("io failure")
)
