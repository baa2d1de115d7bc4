package deduction

import (
	"time"

	"github.com/shopspring/decimal"
)

type Deduction struct {
	ID              int64           `json:"id"`
	DriverID        int64           `json:"driverId"`
	Type            string          `json:"type"`
	Description     string          `json:"description"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	AmountRemaining decimal.Decimal `json:"amountRemaining"`
	Frequency       string          `json:"frequency"`
	AmountPerCycle  decimal.Decimal `json:"amountPerCycle"`
	Status          string          `json:"status"`
	StartDate       time.Time       `json:"startDate"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Application struct {
	ID          int64           `json:"id"`
	DeductionID int64           `json:"deductionId"`
	RctiID      int64           `json:"rctiId"`
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	AppliedAt   time.Time       `json:"appliedAt"`
}

type WithApplications struct {
	Deduction
	Applications []Application `json:"applications"`
}

// Pending is the amount a ledger entry would contribute to the next RCTI.
type Pending struct {
	ID              int64           `json:"id"`
	Type            string          `json:"type"`
	Description     string          `json:"description"`
	Frequency       string          `json:"frequency"`
	AmountRemaining decimal.Decimal `json:"amountRemaining"`
	AmountToApply   decimal.Decimal `json:"amountToApply"`
}

type Applied struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Overrides maps deduction ids to a replacement amount. A nil amount skips
// the entry for this RCTI.
type Overrides map[int64]*decimal.Decimal

type ApplyInput struct {
	RctiID     int64
	DriverID   int64
	WeekEnding time.Time
	Overrides  Overrides
}

type ApplyResult struct {
	Applied                  []Applied       `json:"applied"`
	TotalDeductionAmount     decimal.Decimal `json:"totalDeductionAmount"`
	TotalReimbursementAmount decimal.Decimal `json:"totalReimbursementAmount"`
}

// Net is the signed adjustment to an RCTI total.
func (r ApplyResult) Net() decimal.Decimal {
	return r.TotalReimbursementAmount.Sub(r.TotalDeductionAmount)
}

type CreateInput struct {
	DriverID       int64
	Type           string
	Description    string
	TotalAmount    decimal.Decimal
	Frequency      string
	AmountPerCycle *decimal.Decimal
	StartDate      time.Time
	Notes          string
}

// UpdateInput carries only the fields present in a PATCH body.
type UpdateInput struct {
	Type           *string
	Description    *string
	TotalAmount    *decimal.Decimal
	Frequency      *string
	AmountPerCycle *decimal.Decimal
	StartDate      *time.Time
	Notes          *string
}

func (u UpdateInput) touchesSchedule() bool {
	return u.Type != nil || u.TotalAmount != nil || u.Frequency != nil || u.AmountPerCycle != nil
}

type ListFilter struct {
	DriverID int64
	Status   string
	Type     string
}
