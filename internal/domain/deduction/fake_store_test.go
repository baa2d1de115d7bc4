package deduction

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

type fakeStore struct {
	drivers      map[int64]string
	deductions   map[int64]Deduction
	applications []Application
	nextID       int64
	tx           *fakeTx
	failInsert   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		drivers:    map[int64]string{1: "Contractor", 2: DriverTypeEmployee},
		deductions: map[int64]Deduction{},
		nextID:     1,
	}
}

func (f *fakeStore) add(d Deduction) Deduction {
	if d.ID == 0 {
		d.ID = f.nextID
	}
	if d.ID >= f.nextID {
		f.nextID = d.ID + 1
	}
	if d.Status == "" {
		d.Status = StatusActive
	}
	if d.DriverID == 0 {
		d.DriverID = 1
	}
	d.AmountRemaining = d.TotalAmount.Sub(d.AmountPaid)
	f.deductions[d.ID] = d
	return d
}

func (f *fakeStore) sorted(filter func(Deduction) bool) []Deduction {
	var out []Deduction
	for _, d := range f.deductions {
		if filter(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) ListActiveByDriver(_ context.Context, driverID int64) ([]Deduction, error) {
	return f.sorted(func(d Deduction) bool { return d.DriverID == driverID && d.Status == StatusActive }), nil
}

func (f *fakeStore) LockActiveByDriverTx(ctx context.Context, _ pgx.Tx, driverID int64) ([]Deduction, error) {
	return f.ListActiveByDriver(ctx, driverID)
}

func (f *fakeStore) InsertApplicationTx(_ context.Context, _ pgx.Tx, deductionID, rctiID int64, amount decimal.Decimal) error {
	if f.failInsert != nil {
		return f.failInsert
	}
	f.applications = append(f.applications, Application{
		ID:          int64(len(f.applications) + 1),
		DeductionID: deductionID,
		RctiID:      rctiID,
		Amount:      amount,
	})
	return nil
}

func (f *fakeStore) UpdateBalanceTx(_ context.Context, _ pgx.Tx, d Deduction) error {
	f.deductions[d.ID] = d
	return nil
}

func (f *fakeStore) BeginTx(context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

func (f *fakeStore) DriverType(_ context.Context, driverID int64) (string, error) {
	driverType, ok := f.drivers[driverID]
	if !ok {
		return "", ErrDriverNotFound
	}
	return driverType, nil
}

func (f *fakeStore) List(_ context.Context, filter ListFilter) ([]Deduction, error) {
	return f.sorted(func(d Deduction) bool {
		if filter.DriverID > 0 && d.DriverID != filter.DriverID {
			return false
		}
		if filter.Status != "" && filter.Status != StatusAll && d.Status != filter.Status {
			return false
		}
		return filter.Type == "" || d.Type == filter.Type
	}), nil
}

func (f *fakeStore) Get(_ context.Context, id int64) (Deduction, error) {
	d, ok := f.deductions[id]
	if !ok {
		return Deduction{}, ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) Create(_ context.Context, d Deduction) (Deduction, error) {
	return f.add(d), nil
}

func (f *fakeStore) LockTx(ctx context.Context, _ pgx.Tx, id int64) (Deduction, error) {
	return f.Get(ctx, id)
}

func (f *fakeStore) CountApplicationsTx(_ context.Context, _ pgx.Tx, id int64) (int, error) {
	count := 0
	for _, a := range f.applications {
		if a.DeductionID == id {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpdateTx(_ context.Context, _ pgx.Tx, d Deduction) (Deduction, error) {
	f.deductions[d.ID] = d
	return d, nil
}

func (f *fakeStore) DeleteTx(_ context.Context, _ pgx.Tx, id int64) error {
	delete(f.deductions, id)
	return nil
}

func (f *fakeStore) ListApplications(_ context.Context, deductionID int64) ([]Application, error) {
	var out []Application
	for _, a := range f.applications {
		if a.DeductionID == deductionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListApplicationsForRcti(_ context.Context, rctiID int64) ([]Application, error) {
	var out []Application
	for _, a := range f.applications {
		if a.RctiID == rctiID {
			out = append(out, a)
		}
	}
	return out, nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}
