package deduction

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"worklog/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
	tx querier.TxBeginner
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool, tx: pool}
}

const deductionColumns = `id, driver_id, type, description, total_amount, amount_paid, amount_remaining,
    frequency, amount_per_cycle, status, start_date, notes, created_at, updated_at`

func scanDeduction(row pgx.Row) (Deduction, error) {
	var d Deduction
	err := row.Scan(&d.ID, &d.DriverID, &d.Type, &d.Description, &d.TotalAmount, &d.AmountPaid, &d.AmountRemaining,
		&d.Frequency, &d.AmountPerCycle, &d.Status, &d.StartDate, &d.Notes, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func collectDeductions(rows pgx.Rows) ([]Deduction, error) {
	defer rows.Close()
	var out []Deduction
	for rows.Next() {
		d, err := scanDeduction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.tx.Begin(ctx)
}

func (s *Store) DriverType(ctx context.Context, driverID int64) (string, error) {
	var driverType string
	err := s.DB.QueryRow(ctx, "SELECT type FROM drivers WHERE id = $1", driverID).Scan(&driverType)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrDriverNotFound
	}
	return driverType, err
}

func (s *Store) ListActiveByDriver(ctx context.Context, driverID int64) ([]Deduction, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+deductionColumns+`
    FROM rcti_deductions
    WHERE driver_id = $1 AND status = $2
    ORDER BY id ASC
  `, driverID, StatusActive)
	if err != nil {
		return nil, err
	}
	return collectDeductions(rows)
}

func (s *Store) LockActiveByDriverTx(ctx context.Context, tx pgx.Tx, driverID int64) ([]Deduction, error) {
	rows, err := tx.Query(ctx, `
    SELECT `+deductionColumns+`
    FROM rcti_deductions
    WHERE driver_id = $1 AND status = $2
    ORDER BY id ASC
    FOR UPDATE
  `, driverID, StatusActive)
	if err != nil {
		return nil, err
	}
	return collectDeductions(rows)
}

func (s *Store) InsertApplicationTx(ctx context.Context, tx pgx.Tx, deductionID, rctiID int64, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
    INSERT INTO rcti_deduction_applications (deduction_id, rcti_id, amount)
    VALUES ($1, $2, $3)
  `, deductionID, rctiID, amount)
	return err
}

func (s *Store) UpdateBalanceTx(ctx context.Context, tx pgx.Tx, d Deduction) error {
	_, err := tx.Exec(ctx, `
    UPDATE rcti_deductions
    SET amount_paid = $2, amount_remaining = $3, status = $4, updated_at = now()
    WHERE id = $1
  `, d.ID, d.AmountPaid, d.AmountRemaining, d.Status)
	return err
}

func (s *Store) List(ctx context.Context, filter ListFilter) ([]Deduction, error) {
	query := "SELECT " + deductionColumns + " FROM rcti_deductions WHERE 1=1"
	var args []any
	if filter.DriverID > 0 {
		args = append(args, filter.DriverID)
		query += fmt.Sprintf(" AND driver_id = $%d", len(args))
	}
	if filter.Status != "" && filter.Status != StatusAll {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	query += " ORDER BY id ASC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectDeductions(rows)
}

func (s *Store) Get(ctx context.Context, id int64) (Deduction, error) {
	d, err := scanDeduction(s.DB.QueryRow(ctx, "SELECT "+deductionColumns+" FROM rcti_deductions WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Deduction{}, ErrNotFound
	}
	return d, err
}

func (s *Store) Create(ctx context.Context, d Deduction) (Deduction, error) {
	return scanDeduction(s.DB.QueryRow(ctx, `
    INSERT INTO rcti_deductions (driver_id, type, description, total_amount, amount_paid, amount_remaining,
      frequency, amount_per_cycle, status, start_date, notes)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    RETURNING `+deductionColumns,
		d.DriverID, d.Type, d.Description, d.TotalAmount, d.AmountPaid, d.AmountRemaining,
		d.Frequency, d.AmountPerCycle, d.Status, d.StartDate, d.Notes))
}

func (s *Store) LockTx(ctx context.Context, tx pgx.Tx, id int64) (Deduction, error) {
	d, err := scanDeduction(tx.QueryRow(ctx, "SELECT "+deductionColumns+" FROM rcti_deductions WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Deduction{}, ErrNotFound
	}
	return d, err
}

func (s *Store) CountApplicationsTx(ctx context.Context, tx pgx.Tx, id int64) (int, error) {
	var count int
	err := tx.QueryRow(ctx, "SELECT COUNT(1) FROM rcti_deduction_applications WHERE deduction_id = $1", id).Scan(&count)
	return count, err
}

func (s *Store) UpdateTx(ctx context.Context, tx pgx.Tx, d Deduction) (Deduction, error) {
	return scanDeduction(tx.QueryRow(ctx, `
    UPDATE rcti_deductions
    SET type = $2, description = $3, total_amount = $4, amount_paid = $5, amount_remaining = $6,
        frequency = $7, amount_per_cycle = $8, status = $9, start_date = $10, notes = $11, updated_at = now()
    WHERE id = $1
    RETURNING `+deductionColumns,
		d.ID, d.Type, d.Description, d.TotalAmount, d.AmountPaid, d.AmountRemaining,
		d.Frequency, d.AmountPerCycle, d.Status, d.StartDate, d.Notes))
}

func (s *Store) DeleteTx(ctx context.Context, tx pgx.Tx, id int64) error {
	_, err := tx.Exec(ctx, "DELETE FROM rcti_deductions WHERE id = $1", id)
	return err
}

func (s *Store) ListApplications(ctx context.Context, deductionID int64) ([]Application, error) {
	return s.queryApplications(ctx, "a.deduction_id = $1", deductionID)
}

func (s *Store) ListApplicationsForRcti(ctx context.Context, rctiID int64) ([]Application, error) {
	return s.queryApplications(ctx, "a.rcti_id = $1", rctiID)
}

func (s *Store) queryApplications(ctx context.Context, where string, arg int64) ([]Application, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT a.id, a.deduction_id, a.rcti_id, d.type, d.description, a.amount, a.applied_at
    FROM rcti_deduction_applications a
    JOIN rcti_deductions d ON d.id = a.deduction_id
    WHERE `+where+`
    ORDER BY a.id ASC
  `, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.DeductionID, &a.RctiID, &a.Type, &a.Description, &a.Amount, &a.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
