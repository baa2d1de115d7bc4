package job

import "errors"

var (
	ErrDriverNotFound = errors.New("driver not found")
	ErrInvalidHours   = errors.New("charged hours must not be negative")
)
