package model

import "errors"

var (
	// ErrProviderUnavailable means an embedding or generative provider failed or is not configured
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	// ErrInvalidIntent means the provider answered with JSON that does not fit QueryIntent
	ErrInvalidIntent = errors.New("invalid intent response")
	// ErrListingNotFound is returned by catalog lookups that miss
	ErrListingNotFound = errors.New("listing not found")
)
