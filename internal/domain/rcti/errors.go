package rcti

import "errors"

var (
	ErrNotFound         = errors.New("rcti not found")
	ErrLineNotFound     = errors.New("rcti line not found")
	ErrDriverNotFound   = errors.New("driver not found")
	ErrEmployeeDriver   = errors.New("rctis cannot be issued to employee drivers")
	ErrDuplicate        = errors.New("an rcti already exists for this driver and week")
	ErrNotDraft         = errors.New("rcti is not a draft")
	ErrNoLines          = errors.New("rcti has no lines")
	ErrNotFinalised     = errors.New("rcti must be finalised before it is marked paid")
	ErrReservedCustomer = errors.New("customer name is reserved for break lines")
	ErrInvalidLine      = errors.New("line hours and rate must not be negative")
)
