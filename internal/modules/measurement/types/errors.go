package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidData means the submission failed a domain constraint.
	ErrInvalidData = errors.New("invalid data")
	// ErrMalformedDate means a date string did not parse as YYYY-MM-DD.
	ErrMalformedDate = errors.New("malformed date")
	// ErrMissingField means a submission omitted a field or sent null.
	ErrMissingField = errors.New("missing field")
	// ErrNotFound means a single-day lookup found no record.
	ErrNotFound = errors.New("not found")
	// ErrStore means the backing database failed.
	ErrStore = errors.New("store error")
)

// DateError describes a rejected date string.
type DateError struct {
	Input  string
	Reason string
	Err    error
}

func (e *DateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed date %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("malformed date %q: %s", e.Input, e.Reason)
}

func (e *DateError) Unwrap() error { return e.Err }

func (e *DateError) Is(target error) bool { return target == ErrMalformedDate }

// StoreError wraps a database failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }
