package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("already exists")
	ErrInvalidAthlete = errors.New("athlete id must be positive")
	ErrClosed         = errors.New("store closed")
)
