package rcti

import (
	"time"

	"github.com/shopspring/decimal"

	"worklog/internal/domain/deduction"
)

type Rcti struct {
	ID                 int64           `json:"id"`
	DriverID           int64           `json:"driverId"`
	WeekEnding         time.Time       `json:"weekEnding"`
	InvoiceNumber      string          `json:"invoiceNumber"`
	Status             string          `json:"status"`
	GSTStatus          string          `json:"gstStatus"`
	GSTMode            string          `json:"gstMode"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	GST                decimal.Decimal `json:"gst"`
	Total              decimal.Decimal `json:"total"`
	DeductionTotal     decimal.Decimal `json:"deductionTotal"`
	ReimbursementTotal decimal.Decimal `json:"reimbursementTotal"`
	FinalizedAt        *time.Time      `json:"finalizedAt,omitempty"`
	PaidAt             *time.Time      `json:"paidAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

type Line struct {
	ID           int64           `json:"id"`
	RctiID       int64           `json:"rctiId"`
	JobID        *int64          `json:"jobId"`
	JobDate      *time.Time      `json:"jobDate,omitempty"`
	Customer     string          `json:"customer"`
	TruckType    string          `json:"truckType"`
	Description  string          `json:"description"`
	ChargedHours decimal.Decimal `json:"chargedHours"`
	RatePerHour  decimal.Decimal `json:"ratePerHour"`
	AmountExGST  decimal.Decimal `json:"amountExGst"`
	GSTAmount    decimal.Decimal `json:"gstAmount"`
	AmountIncGST decimal.Decimal `json:"amountIncGst"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func (l Line) IsBreak() bool {
	return l.JobID == nil && l.Customer == BreakCustomer
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	GST      decimal.Decimal `json:"gst"`
	Total    decimal.Decimal `json:"total"`
}

// Detail is an RCTI with its lines and either the deductions a finalize
// would take (draft) or those it took (finalised and paid).
type Detail struct {
	Rcti
	DriverName        string                  `json:"driverName"`
	DriverABN         string                  `json:"driverAbn"`
	Lines             []Line                  `json:"lines"`
	PendingDeductions []deduction.Pending     `json:"pendingDeductions,omitempty"`
	Applications      []deduction.Application `json:"deductionApplications,omitempty"`
}

type LineInput struct {
	JobDate      *time.Time
	Customer     string
	TruckType    string
	Description  string
	ChargedHours decimal.Decimal
	RatePerHour  decimal.Decimal
}

type Filter struct {
	DriverID int64
	Status   string
}

type FinalizeResult struct {
	Rcti       Rcti                  `json:"rcti"`
	Deductions deduction.ApplyResult `json:"deductions"`
}

// Company is printed as the recipient on generated documents.
type Company struct {
	Name string
	ABN  string
}
