package driver

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeEmployee      = "Employee"
	TypeContractor    = "Contractor"
	TypeSubcontractor = "Subcontractor"

	GSTRegistered    = "registered"
	GSTNotRegistered = "not_registered"

	GSTExclusive = "exclusive"
	GSTInclusive = "inclusive"
)

var (
	Types       = []string{TypeEmployee, TypeContractor, TypeSubcontractor}
	GSTStatuses = []string{GSTRegistered, GSTNotRegistered}
	GSTModes    = []string{GSTExclusive, GSTInclusive}
)

type Driver struct {
	ID          int64                      `json:"id"`
	Name        string                     `json:"name"`
	Type        string                     `json:"type"`
	Breaks      decimal.Decimal            `json:"breaks"`
	GSTStatus   string                     `json:"gstStatus"`
	GSTMode     string                     `json:"gstMode"`
	TruckRates  map[string]decimal.Decimal `json:"truckRates"`
	ABN         string                     `json:"abn"`
	BankAccount string                     `json:"bankAccount,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
}

// RateFor returns the configured hourly rate for a truck type.
func (d Driver) RateFor(truckType string) (decimal.Decimal, bool) {
	rate, ok := d.TruckRates[truckType]
	return rate, ok
}

type Patch struct {
	Name        *string
	Type        *string
	Breaks      *decimal.Decimal
	GSTStatus   *string
	GSTMode     *string
	TruckRates  map[string]decimal.Decimal
	ABN         *string
	BankAccount *string
}

func (p Patch) Apply(d Driver) Driver {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.Breaks != nil {
		d.Breaks = *p.Breaks
	}
	if p.GSTStatus != nil {
		d.GSTStatus = *p.GSTStatus
	}
	if p.GSTMode != nil {
		d.GSTMode = *p.GSTMode
	}
	if p.TruckRates != nil {
		d.TruckRates = p.TruckRates
	}
	if p.ABN != nil {
		d.ABN = *p.ABN
	}
	if p.BankAccount != nil {
		d.BankAccount = *p.BankAccount
	}
	return d
}
