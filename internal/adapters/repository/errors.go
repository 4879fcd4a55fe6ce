package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound     = errors.New("no records cached")
	ErrInvalidLimit = errors.New("invalid records limit")
)
