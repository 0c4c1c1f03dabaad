package model

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a record or index document is not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery is returned when a search expression or filter is malformed
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidRow is returned when a row reference cannot be parsed
	ErrInvalidRow = errors.New("invalid row reference")
	// ErrCanceled is returned when the operation is canceled by the caller
	ErrCanceled = errors.New("operation canceled")
)

// WrapError converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// It checks both direct context errors and wrapped errors (e.g., from the MongoDB driver or
// the search client transport).
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}
