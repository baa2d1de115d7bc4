package rcti

import "github.com/shopspring/decimal"

const (
	StatusDraft     = "draft"
	StatusFinalised = "finalised"
	StatusPaid      = "paid"

	// BreakCustomer marks the synthetic meal-break lines.
	BreakCustomer = "Break Deduction"
)

var (
	Statuses = []string{StatusDraft, StatusFinalised, StatusPaid}

	gstRate       = decimal.RequireFromString("0.10")
	gstMultiplier = decimal.RequireFromString("1.10")
)
