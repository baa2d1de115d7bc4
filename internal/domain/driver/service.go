package driver

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	cryptoutil "worklog/internal/platform/crypto"
	"worklog/internal/platform/querier"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, driverType string, limit, offset int) ([]Driver, error) {
	return s.store.List(ctx, driverType, limit, offset)
}

// Get reads a driver, inside tx when one is supplied.
func (s *Service) Get(ctx context.Context, q querier.Querier, id int64) (Driver, error) {
	return s.store.Get(ctx, q, id)
}

func (s *Service) Create(ctx context.Context, d Driver) (Driver, error) {
	d = normalize(d)
	if err := validate(d); err != nil {
		return Driver{}, err
	}
	return s.store.Create(ctx, d)
}

func (s *Service) Update(ctx context.Context, id int64, patch Patch) (before, after Driver, err error) {
	before, err = s.store.Get(ctx, nil, id)
	if err != nil {
		return before, after, err
	}
	updated := normalize(patch.Apply(before))
	if err := validate(updated); err != nil {
		return before, after, err
	}
	after, err = s.store.Update(ctx, updated)
	return before, after, err
}

// Redact hides the bank account from callers without write access.
func Redact(d *Driver, canSeeBank bool) {
	if canSeeBank {
		return
	}
	d.BankAccount = cryptoutil.Mask(d.BankAccount)
}

func normalize(d Driver) Driver {
	d.Name = strings.TrimSpace(d.Name)
	d.ABN = strings.TrimSpace(d.ABN)
	d.BankAccount = strings.TrimSpace(d.BankAccount)
	if d.GSTStatus == "" {
		d.GSTStatus = GSTNotRegistered
	}
	if d.GSTMode == "" {
		d.GSTMode = GSTExclusive
	}
	if d.TruckRates == nil {
		d.TruckRates = map[string]decimal.Decimal{}
	}
	rates := make(map[string]decimal.Decimal, len(d.TruckRates))
	for truckType, rate := range d.TruckRates {
		truckType = strings.TrimSpace(truckType)
		if truckType == "" {
			continue
		}
		rates[truckType] = rate.Round(2)
	}
	d.TruckRates = rates
	d.Breaks = d.Breaks.Round(2)
	return d
}

func validate(d Driver) error {
	if d.Breaks.IsNegative() {
		return ErrInvalidBreaks
	}
	for _, rate := range d.TruckRates {
		if rate.IsNegative() {
			return ErrInvalidRate
		}
	}
	return nil
}
