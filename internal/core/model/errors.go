package model

import (
	"context"
	"errors"
)

// ErrNetwork is returned when a remote endpoint is unreachable or answers with
// a non-success status
var ErrNetwork = errors.New("network error")

// ErrMalformedResponse is returned when a response lacks a required field
var ErrMalformedResponse = errors.New("malformed response")

// ErrCancelled is returned when an operation was aborted by its owner
var ErrCancelled = errors.New("operation cancelled")

// ErrConfiguration is returned when a referenced dataset or layer is missing
// from the local configuration
var ErrConfiguration = errors.New("configuration error")

// ErrInvalidRequest is returned when an analysis request is incomplete
var ErrInvalidRequest = errors.New("invalid analysis request")

// ErrTooManyItems is returned when discovery matches more assets than an
// analysis is allowed to fetch
var ErrTooManyItems = errors.New("too many items for analysis")

// IsCancellation reports whether err stems from an aborted operation rather
// than a failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
