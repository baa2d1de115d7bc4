package deduction

import "errors"

var (
	ErrNotFound        = errors.New("deduction not found")
	ErrDriverNotFound  = errors.New("driver not found")
	ErrEmployeeDriver  = errors.New("deductions cannot be created for employee drivers")
	ErrHasApplications = errors.New("deduction has applications; amounts and schedule are locked")
	ErrInvalidAmount   = errors.New("amounts must be positive")
	ErrInvalidOverride = errors.New("deduction override must be a number or null")
)
