package deduction

const (
	TypeDeduction     = "deduction"
	TypeReimbursement = "reimbursement"

	FrequencyOnce        = "once"
	FrequencyWeekly      = "weekly"
	FrequencyFortnightly = "fortnightly"
	FrequencyMonthly     = "monthly"

	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	// StatusAll disables the status filter when listing.
	StatusAll = "all"

	DriverTypeEmployee = "Employee"
)

var (
	Types       = []string{TypeDeduction, TypeReimbursement}
	Frequencies = []string{FrequencyOnce, FrequencyWeekly, FrequencyFortnightly, FrequencyMonthly}
	Statuses    = []string{StatusActive, StatusCompleted, StatusCancelled}
)
