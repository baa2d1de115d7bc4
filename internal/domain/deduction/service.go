package deduction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"worklog/internal/requestctx"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Deduction, error) {
	if filter.Status == "" {
		filter.Status = StatusActive
	}
	return s.store.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id int64) (WithApplications, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return WithApplications{}, err
	}
	apps, err := s.store.ListApplications(ctx, id)
	if err != nil {
		return WithApplications{}, err
	}
	if apps == nil {
		apps = []Application{}
	}
	return WithApplications{Deduction: d, Applications: apps}, nil
}

func (s *Service) Pending(ctx context.Context, driverID int64, weekEnding time.Time) ([]Pending, error) {
	return PendingForDriver(ctx, s.store, driverID, weekEnding)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Deduction, error) {
	driverType, err := s.store.DriverType(ctx, in.DriverID)
	if err != nil {
		return Deduction{}, err
	}
	if driverType == DriverTypeEmployee {
		return Deduction{}, ErrEmployeeDriver
	}

	total := Money(in.TotalAmount)
	perCycle := normalizeSchedule(in.Frequency, total, in.AmountPerCycle)
	if !total.IsPositive() || !perCycle.IsPositive() {
		return Deduction{}, ErrInvalidAmount
	}
	startDate := in.StartDate
	if startDate.IsZero() {
		startDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	return s.store.Create(ctx, Deduction{
		DriverID:        in.DriverID,
		Type:            in.Type,
		Description:     strings.TrimSpace(in.Description),
		TotalAmount:     total,
		AmountPaid:      decimal.Zero,
		AmountRemaining: total,
		Frequency:       in.Frequency,
		AmountPerCycle:  perCycle,
		Status:          StatusActive,
		StartDate:       startDate,
		Notes:           strings.TrimSpace(in.Notes),
	})
}

// Update edits an entry. Once money has been applied only descriptive
// fields may change.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (before, after Deduction, err error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return before, after, err
	}
	defer rollback(ctx, tx)

	before, err = s.store.LockTx(ctx, tx, id)
	if err != nil {
		return before, after, err
	}
	updated := before

	if in.touchesSchedule() {
		count, err := s.store.CountApplicationsTx(ctx, tx, id)
		if err != nil {
			return before, after, err
		}
		if count > 0 {
			return before, after, ErrHasApplications
		}
		if in.Type != nil {
			updated.Type = *in.Type
		}
		if in.Frequency != nil {
			updated.Frequency = *in.Frequency
		}
		if in.TotalAmount != nil {
			updated.TotalAmount = Money(*in.TotalAmount)
		}
		perCycle := &updated.AmountPerCycle
		if in.AmountPerCycle != nil {
			perCycle = in.AmountPerCycle
		}
		updated.AmountPerCycle = normalizeSchedule(updated.Frequency, updated.TotalAmount, perCycle)
		if !updated.TotalAmount.IsPositive() || !updated.AmountPerCycle.IsPositive() {
			return before, after, ErrInvalidAmount
		}
		updated.AmountPaid = decimal.Zero
		updated.AmountRemaining = updated.TotalAmount
	}
	if in.Description != nil {
		updated.Description = strings.TrimSpace(*in.Description)
	}
	if in.Notes != nil {
		updated.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.StartDate != nil {
		updated.StartDate = *in.StartDate
	}

	after, err = s.store.UpdateTx(ctx, tx, updated)
	if err != nil {
		return before, after, fmt.Errorf("update deduction: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return before, after, err
	}
	return before, after, nil
}

// Delete removes an entry that was never applied, otherwise cancels it so
// its application history survives.
func (s *Service) Delete(ctx context.Context, id int64) (cancelled bool, err error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer rollback(ctx, tx)

	d, err := s.store.LockTx(ctx, tx, id)
	if err != nil {
		return false, err
	}
	count, err := s.store.CountApplicationsTx(ctx, tx, id)
	if err != nil {
		return false, err
	}

	if count == 0 {
		if err := s.store.DeleteTx(ctx, tx, id); err != nil {
			return false, fmt.Errorf("delete deduction: %w", err)
		}
	} else {
		d.Status = StatusCancelled
		if _, err := s.store.UpdateTx(ctx, tx, d); err != nil {
			return false, fmt.Errorf("cancel deduction: %w", err)
		}
		cancelled = true
	}
	return cancelled, tx.Commit(ctx)
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		requestctx.Logger(ctx).Warn("deduction tx rollback failed", "err", err)
	}
}
