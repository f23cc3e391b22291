package kvlite

import "errors"

var (
	// ErrInvalidKey is returned when a key is neither a string nor an integer.
	ErrInvalidKey = errors.New("invalid key: must be a string or integer")

	// ErrNotList is returned by list operations when the stored value is not a sequence.
	ErrNotList = errors.New("stored value is not a list")

	// ErrNotInteger is returned by counter operations when the stored value
	// cannot be coerced to an integer.
	ErrNotInteger = errors.New("stored value is not an integer")
)
