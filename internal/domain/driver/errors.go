package driver

import "errors"

var (
	ErrNotFound      = errors.New("driver not found")
	ErrInvalidBreaks = errors.New("breaks must not be negative")
	ErrInvalidRate   = errors.New("truck rates must not be negative")
)
