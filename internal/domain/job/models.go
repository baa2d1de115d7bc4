package job

import (
	"time"

	"github.com/shopspring/decimal"
)

type Job struct {
	ID           int64            `json:"id"`
	Date         time.Time        `json:"date"`
	DriverID     int64            `json:"driverId"`
	Customer     string           `json:"customer"`
	TruckType    string           `json:"truckType"`
	Description  string           `json:"description"`
	ChargedHours decimal.Decimal  `json:"chargedHours"`
	RatePerHour  *decimal.Decimal `json:"ratePerHour,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

type Filter struct {
	DriverID int64
	From     time.Time
	To       time.Time
}
