// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidPriority is returned for priorities outside [0, 100].
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrInvalidInterval is returned for custom intervals that are not a positive day count.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrItemNotFound is returned when the note behind a transition no longer exists.
	ErrItemNotFound = errors.New("item not found")
	// ErrStoreUnavailable is returned when the persistence surface cannot be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMalformedNote is returned when a note's frontmatter cannot be decoded,
	// so it cannot be rewritten safely.
	ErrMalformedNote = errors.New("malformed note frontmatter")
)
