package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrQueueFull      = errors.New("queue full")
	ErrEmptySelection = errors.New("no known items selected")
)
