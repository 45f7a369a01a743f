package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrBackpressure = errors.New("import queue full")
	ErrNotStarted   = errors.New("service not started")
	ErrJobNotFound  = errors.New("import job not found")
)
