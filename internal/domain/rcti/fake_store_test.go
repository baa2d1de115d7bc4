package rcti

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"worklog/internal/domain/deduction"
	"worklog/internal/domain/driver"
	"worklog/internal/domain/job"
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
	rctis    map[int64]Rcti
	lines    map[int64]Line
	drivers  map[int64]driver.Driver
	jobs     []job.Job
	nextLine int64
	nextRcti int64
	tx       *fakeTx
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rctis:    map[int64]Rcti{},
		lines:    map[int64]Line{},
		drivers:  map[int64]driver.Driver{},
		nextLine: 1,
		nextRcti: 1,
	}
}

func (f *fakeStore) BeginTx(context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

func (f *fakeStore) Get(_ context.Context, id int64) (Rcti, error) {
	r, ok := f.rctis[id]
	if !ok {
		return Rcti{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) GetTx(ctx context.Context, _ pgx.Tx, id int64) (Rcti, error) {
	return f.Get(ctx, id)
}

func (f *fakeStore) LockTx(ctx context.Context, _ pgx.Tx, id int64) (Rcti, error) {
	return f.Get(ctx, id)
}

func (f *fakeStore) List(_ context.Context, filter Filter, _, _ int) ([]Rcti, error) {
	var out []Rcti
	for _, r := range f.rctis {
		if (filter.DriverID == 0 || r.DriverID == filter.DriverID) && (filter.Status == "" || r.Status == filter.Status) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Driver(_ context.Context, driverID int64) (driver.Driver, error) {
	d, ok := f.drivers[driverID]
	if !ok {
		return driver.Driver{}, ErrDriverNotFound
	}
	return d, nil
}

func (f *fakeStore) DriverTx(ctx context.Context, _ pgx.Tx, driverID int64) (driver.Driver, error) {
	return f.Driver(ctx, driverID)
}

func (f *fakeStore) CreateTx(_ context.Context, _ pgx.Tx, r Rcti) (Rcti, error) {
	for _, existing := range f.rctis {
		if existing.DriverID == r.DriverID && existing.WeekEnding.Equal(r.WeekEnding) {
			return Rcti{}, ErrDuplicate
		}
	}
	r.ID = f.nextRcti
	f.nextRcti++
	f.rctis[r.ID] = r
	return r, nil
}

func (f *fakeStore) JobsForWeekTx(_ context.Context, _ pgx.Tx, driverID int64, weekEnding time.Time) ([]job.Job, error) {
	var out []job.Job
	for _, j := range f.jobs {
		if j.DriverID == driverID && !j.Date.Before(job.WeekStart(weekEnding)) && !j.Date.After(weekEnding) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeStore) ListLines(_ context.Context, rctiID int64) ([]Line, error) {
	var out []Line
	for _, l := range f.lines {
		if l.RctiID == rctiID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListLinesTx(ctx context.Context, _ pgx.Tx, rctiID int64) ([]Line, error) {
	return f.ListLines(ctx, rctiID)
}

func (f *fakeStore) GetLineTx(_ context.Context, _ pgx.Tx, rctiID, lineID int64) (Line, error) {
	l, ok := f.lines[lineID]
	if !ok || l.RctiID != rctiID {
		return Line{}, ErrLineNotFound
	}
	return l, nil
}

func (f *fakeStore) InsertLineTx(_ context.Context, _ pgx.Tx, l Line) (Line, error) {
	l.ID = f.nextLine
	f.nextLine++
	f.lines[l.ID] = l
	return l, nil
}

func (f *fakeStore) DeleteLineTx(_ context.Context, _ pgx.Tx, lineID int64) error {
	delete(f.lines, lineID)
	return nil
}

func (f *fakeStore) DeleteBreakLinesTx(_ context.Context, _ pgx.Tx, rctiID int64) error {
	for id, l := range f.lines {
		if l.RctiID == rctiID && l.IsBreak() {
			delete(f.lines, id)
		}
	}
	return nil
}

func (f *fakeStore) UpdateTotalsTx(_ context.Context, _ pgx.Tx, rctiID int64, totals Totals) error {
	r := f.rctis[rctiID]
	r.Subtotal, r.GST, r.Total = totals.Subtotal, totals.GST, totals.Total
	f.rctis[rctiID] = r
	return nil
}

func (f *fakeStore) FinalizeTx(_ context.Context, _ pgx.Tx, id int64, result deduction.ApplyResult) (Rcti, error) {
	r := f.rctis[id]
	if r.Status != StatusDraft {
		return Rcti{}, ErrNotDraft
	}
	now := time.Now()
	r.Status = StatusFinalised
	r.FinalizedAt = &now
	r.DeductionTotal = result.TotalDeductionAmount
	r.ReimbursementTotal = result.TotalReimbursementAmount
	r.Total = r.Total.Add(result.Net())
	f.rctis[id] = r
	return r, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, id int64) (Rcti, error) {
	r, ok := f.rctis[id]
	if !ok {
		return Rcti{}, ErrNotFound
	}
	if r.Status != StatusFinalised {
		return Rcti{}, ErrNotFinalised
	}
	r.Status = StatusPaid
	f.rctis[id] = r
	return r, nil
}

type fakeLedger struct {
	entries      []deduction.Deduction
	applications []deduction.Application
}

func (l *fakeLedger) ListActiveByDriver(_ context.Context, driverID int64) ([]deduction.Deduction, error) {
	var out []deduction.Deduction
	for _, d := range l.entries {
		if d.DriverID == driverID && d.Status == deduction.StatusActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (l *fakeLedger) LockActiveByDriverTx(ctx context.Context, _ pgx.Tx, driverID int64) ([]deduction.Deduction, error) {
	return l.ListActiveByDriver(ctx, driverID)
}

func (l *fakeLedger) InsertApplicationTx(_ context.Context, _ pgx.Tx, deductionID, rctiID int64, amount decimal.Decimal) error {
	l.applications = append(l.applications, deduction.Application{
		ID: int64(len(l.applications) + 1), DeductionID: deductionID, RctiID: rctiID, Amount: amount,
	})
	return nil
}

func (l *fakeLedger) UpdateBalanceTx(_ context.Context, _ pgx.Tx, d deduction.Deduction) error {
	for i := range l.entries {
		if l.entries[i].ID == d.ID {
			l.entries[i] = d
		}
	}
	return nil
}

func (l *fakeLedger) ListApplicationsForRcti(_ context.Context, rctiID int64) ([]deduction.Application, error) {
	var out []deduction.Application
	for _, a := range l.applications {
		if a.RctiID == rctiID {
			out = append(out, a)
		}
	}
	return out, nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func int64Ptr(v int64) *int64 {
	return &v
}

var testWeekEnding = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

// seedDraft stores a draft for a contractor with breaks 0.5 and two truck
// types, priced GST exclusive.
func seedDraft(f *fakeStore) Rcti {
	f.drivers[1] = driver.Driver{
		ID:         1,
		Name:       "Sam Carter",
		Type:       driver.TypeContractor,
		Breaks:     dec("0.5"),
		GSTStatus:  driver.GSTRegistered,
		GSTMode:    driver.GSTExclusive,
		TruckRates: map[string]decimal.Decimal{"Tipper": dec("100")},
	}
	r := Rcti{ID: 1, DriverID: 1, WeekEnding: testWeekEnding, InvoiceNumber: "RCTI-1-20240310", Status: StatusDraft,
		GSTStatus: driver.GSTRegistered, GSTMode: driver.GSTExclusive}
	f.rctis[1] = r
	f.nextRcti = 2
	add := func(jobID int64, truck, hours, rate string) {
		l := priceLine(Line{RctiID: 1, JobID: int64Ptr(jobID), Customer: "Acme", TruckType: truck,
			ChargedHours: dec(hours), RatePerHour: dec(rate)}, r.GSTStatus, r.GSTMode)
		_, _ = f.InsertLineTx(context.Background(), nil, l)
	}
	add(11, "Tipper", "8", "100")
	add(12, "Tipper", "9", "100")
	add(13, "Semi", "10", "120")
	return r
}
