package domain

import "errors"

// Sentinel errors for cross-package error classification. Callers wrap
// these so transports can map error categories to responses uniformly.
var (
	// ErrInvalidRange indicates an unknown or malformed range token.
	ErrInvalidRange = errors.New("invalid range token")

	// ErrUnknownApplication indicates the application id is not registered.
	ErrUnknownApplication = errors.New("unknown application")

	// ErrUnavailable indicates every source for the requested view failed
	// and no reusable cached result exists.
	ErrUnavailable = errors.New("aggregation unavailable")
)
