package rcti

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"worklog/internal/domain/deduction"
	"worklog/internal/domain/driver"
	"worklog/internal/requestctx"
)

type Service struct {
	store  StoreAPI
	ledger Ledger
}

func NewService(store StoreAPI, ledger Ledger) *Service {
	return &Service{store: store, ledger: ledger}
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Rcti, error) {
	return s.store.List(ctx, filter, limit, offset)
}

// Detail loads an invoice with its lines. Drafts carry the pending
// deductions preview; finalised invoices carry the persisted applications.
func (s *Service) Detail(ctx context.Context, id int64) (Detail, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	lines, err := s.store.ListLines(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if lines == nil {
		lines = []Line{}
	}
	drv, err := s.store.Driver(ctx, r.DriverID)
	if err != nil {
		return Detail{}, err
	}

	detail := Detail{Rcti: r, DriverName: drv.Name, DriverABN: drv.ABN, Lines: lines}
	if r.Status == StatusDraft {
		detail.PendingDeductions, err = deduction.PendingForDriver(ctx, s.ledger, r.DriverID, r.WeekEnding)
	} else {
		detail.Applications, err = s.ledger.ListApplicationsForRcti(ctx, id)
	}
	if err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// CreateDraft opens an invoice for a driver's week and fills it from the
// jobs dated in the seven days ending weekEnding.
func (s *Service) CreateDraft(ctx context.Context, driverID int64, weekEnding time.Time) (Rcti, error) {
	weekEnding = dateOnly(weekEnding)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return Rcti{}, err
	}
	defer rollback(ctx, tx)

	drv, err := s.store.DriverTx(ctx, tx, driverID)
	if err != nil {
		return Rcti{}, err
	}
	if drv.Type == driver.TypeEmployee {
		return Rcti{}, ErrEmployeeDriver
	}

	r, err := s.store.CreateTx(ctx, tx, Rcti{
		DriverID:      driverID,
		WeekEnding:    weekEnding,
		InvoiceNumber: InvoiceNumber(driverID, weekEnding),
		Status:        StatusDraft,
		GSTStatus:     drv.GSTStatus,
		GSTMode:       drv.GSTMode,
	})
	if err != nil {
		return Rcti{}, err
	}

	jobs, err := s.store.JobsForWeekTx(ctx, tx, driverID, weekEnding)
	if err != nil {
		return Rcti{}, fmt.Errorf("load jobs: %w", err)
	}
	for _, j := range jobs {
		rate := decimal.Zero
		if j.RatePerHour != nil {
			rate = *j.RatePerHour
		} else if truckRate, ok := drv.RateFor(j.TruckType); ok {
			rate = truckRate
		}
		jobID, jobDate := j.ID, j.Date
		line := priceLine(Line{
			RctiID:       r.ID,
			JobID:        &jobID,
			JobDate:      &jobDate,
			Customer:     j.Customer,
			TruckType:    j.TruckType,
			Description:  j.Description,
			ChargedHours: j.ChargedHours,
			RatePerHour:  rate,
		}, r.GSTStatus, r.GSTMode)
		if _, err := s.store.InsertLineTx(ctx, tx, line); err != nil {
			return Rcti{}, fmt.Errorf("insert job line: %w", err)
		}
	}

	totals, err := RecalculateBreaksAndTotals(ctx, s.store, tx, r.ID)
	if err != nil {
		return Rcti{}, err
	}
	r.Subtotal, r.GST, r.Total = totals.Subtotal, totals.GST, totals.Total
	return r, tx.Commit(ctx)
}

func (s *Service) AddLine(ctx context.Context, id int64, in LineInput) (Line, Totals, error) {
	customer := strings.TrimSpace(in.Customer)
	if customer == BreakCustomer {
		return Line{}, Totals{}, ErrReservedCustomer
	}
	if in.ChargedHours.IsNegative() || in.RatePerHour.IsNegative() {
		return Line{}, Totals{}, ErrInvalidLine
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return Line{}, Totals{}, err
	}
	defer rollback(ctx, tx)

	r, err := s.store.LockTx(ctx, tx, id)
	if err != nil {
		return Line{}, Totals{}, err
	}
	if r.Status != StatusDraft {
		return Line{}, Totals{}, ErrNotDraft
	}

	jobDate := in.JobDate
	if jobDate == nil {
		weekEnding := r.WeekEnding
		jobDate = &weekEnding
	}
	line, err := s.store.InsertLineTx(ctx, tx, priceLine(Line{
		RctiID:       id,
		JobDate:      jobDate,
		Customer:     customer,
		TruckType:    strings.TrimSpace(in.TruckType),
		Description:  strings.TrimSpace(in.Description),
		ChargedHours: in.ChargedHours,
		RatePerHour:  in.RatePerHour,
	}, r.GSTStatus, r.GSTMode))
	if err != nil {
		return Line{}, Totals{}, fmt.Errorf("insert line: %w", err)
	}

	totals, err := RecalculateBreaksAndTotals(ctx, s.store, tx, id)
	if err != nil {
		return Line{}, Totals{}, err
	}
	return line, totals, tx.Commit(ctx)
}

// DeleteLine removes a line from a draft and rebuilds break lines and
// totals in the same transaction.
func (s *Service) DeleteLine(ctx context.Context, id, lineID int64) (Line, Totals, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return Line{}, Totals{}, err
	}
	defer rollback(ctx, tx)

	r, err := s.store.LockTx(ctx, tx, id)
	if err != nil {
		return Line{}, Totals{}, err
	}
	if r.Status != StatusDraft {
		return Line{}, Totals{}, ErrNotDraft
	}
	line, err := s.store.GetLineTx(ctx, tx, id, lineID)
	if err != nil {
		return Line{}, Totals{}, err
	}
	if err := s.store.DeleteLineTx(ctx, tx, lineID); err != nil {
		return Line{}, Totals{}, fmt.Errorf("delete line: %w", err)
	}

	totals, err := RecalculateBreaksAndTotals(ctx, s.store, tx, id)
	if err != nil {
		return Line{}, Totals{}, err
	}
	return line, totals, tx.Commit(ctx)
}

// Finalize locks the invoice, applies the driver's deductions and freezes
// the adjusted total, all in one transaction.
func (s *Service) Finalize(ctx context.Context, id int64, overrides deduction.Overrides) (FinalizeResult, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return FinalizeResult{}, err
	}
	defer rollback(ctx, tx)

	r, err := s.store.LockTx(ctx, tx, id)
	if err != nil {
		return FinalizeResult{}, err
	}
	if r.Status != StatusDraft {
		return FinalizeResult{}, ErrNotDraft
	}
	lines, err := s.store.ListLinesTx(ctx, tx, id)
	if err != nil {
		return FinalizeResult{}, err
	}
	if len(lines) == 0 {
		return FinalizeResult{}, ErrNoLines
	}

	applied, err := deduction.ApplyToRcti(ctx, s.ledger, tx, deduction.ApplyInput{
		RctiID:     r.ID,
		DriverID:   r.DriverID,
		WeekEnding: r.WeekEnding,
		Overrides:  overrides,
	})
	if err != nil {
		return FinalizeResult{}, err
	}

	finalized, err := s.store.FinalizeTx(ctx, tx, id, applied)
	if err != nil {
		return FinalizeResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return FinalizeResult{}, err
	}
	return FinalizeResult{Rcti: finalized, Deductions: applied}, nil
}

func (s *Service) MarkPaid(ctx context.Context, id int64) (Rcti, error) {
	return s.store.MarkPaid(ctx, id)
}

func InvoiceNumber(driverID int64, weekEnding time.Time) string {
	return fmt.Sprintf("RCTI-%d-%s", driverID, weekEnding.Format("20060102"))
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		requestctx.Logger(ctx).Warn("rcti tx rollback failed", "err", err)
	}
}
