package domain

import "errors"

var (
	ErrNotFound          = errors.New("resource not found")
	ErrPathEscape        = errors.New("path escapes storage root")
	ErrInvalidTransition = errors.New("invalid conversion status transition")
)
