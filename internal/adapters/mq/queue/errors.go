package queue

import "errors"

// Enqueue failure reasons.
var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)
