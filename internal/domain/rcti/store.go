package rcti

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"worklog/internal/domain/deduction"
	"worklog/internal/domain/driver"
	"worklog/internal/domain/job"
	"worklog/internal/platform/querier"
)

type Store struct {
	DB      querier.Querier
	pool    querier.TxBeginner
	drivers *driver.Store
	jobs    *job.Store
}

func NewStore(pool *pgxpool.Pool, drivers *driver.Store, jobs *job.Store) *Store {
	return &Store{DB: pool, pool: pool, drivers: drivers, jobs: jobs}
}

const rctiColumns = `id, driver_id, week_ending, invoice_number, status, gst_status, gst_mode,
    subtotal, gst, total, deduction_total, reimbursement_total, finalized_at, paid_at, created_at`

const lineColumns = `id, rcti_id, job_id, job_date, customer, truck_type, description,
    charged_hours, rate_per_hour, amount_ex_gst, gst_amount, amount_inc_gst, created_at`

func scanRcti(row pgx.Row) (Rcti, error) {
	var r Rcti
	err := row.Scan(&r.ID, &r.DriverID, &r.WeekEnding, &r.InvoiceNumber, &r.Status, &r.GSTStatus, &r.GSTMode,
		&r.Subtotal, &r.GST, &r.Total, &r.DeductionTotal, &r.ReimbursementTotal, &r.FinalizedAt, &r.PaidAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rcti{}, ErrNotFound
	}
	return r, err
}

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.RctiID, &l.JobID, &l.JobDate, &l.Customer, &l.TruckType, &l.Description,
		&l.ChargedHours, &l.RatePerHour, &l.AmountExGST, &l.GSTAmount, &l.AmountIncGST, &l.CreatedAt)
	return l, err
}

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

func (s *Store) Get(ctx context.Context, id int64) (Rcti, error) {
	return scanRcti(s.DB.QueryRow(ctx, "SELECT "+rctiColumns+" FROM rctis WHERE id = $1", id))
}

func (s *Store) GetTx(ctx context.Context, tx pgx.Tx, id int64) (Rcti, error) {
	return scanRcti(tx.QueryRow(ctx, "SELECT "+rctiColumns+" FROM rctis WHERE id = $1", id))
}

func (s *Store) LockTx(ctx context.Context, tx pgx.Tx, id int64) (Rcti, error) {
	return scanRcti(tx.QueryRow(ctx, "SELECT "+rctiColumns+" FROM rctis WHERE id = $1 FOR UPDATE", id))
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Rcti, error) {
	query := "SELECT " + rctiColumns + " FROM rctis WHERE 1=1"
	var args []any
	if filter.DriverID > 0 {
		args = append(args, filter.DriverID)
		query += fmt.Sprintf(" AND driver_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY week_ending DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rcti
	for rows.Next() {
		r, err := scanRcti(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Driver(ctx context.Context, driverID int64) (driver.Driver, error) {
	return s.driver(ctx, s.DB, driverID)
}

func (s *Store) DriverTx(ctx context.Context, tx pgx.Tx, driverID int64) (driver.Driver, error) {
	return s.driver(ctx, tx, driverID)
}

func (s *Store) driver(ctx context.Context, q querier.Querier, driverID int64) (driver.Driver, error) {
	d, err := s.drivers.Get(ctx, q, driverID)
	if errors.Is(err, driver.ErrNotFound) {
		return driver.Driver{}, ErrDriverNotFound
	}
	return d, err
}

func (s *Store) JobsForWeekTx(ctx context.Context, tx pgx.Tx, driverID int64, weekEnding time.Time) ([]job.Job, error) {
	return s.jobs.ForDriverWeek(ctx, tx, driverID, weekEnding)
}

func (s *Store) CreateTx(ctx context.Context, tx pgx.Tx, r Rcti) (Rcti, error) {
	created, err := scanRcti(tx.QueryRow(ctx, `
    INSERT INTO rctis (driver_id, week_ending, invoice_number, status, gst_status, gst_mode)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING `+rctiColumns,
		r.DriverID, r.WeekEnding, r.InvoiceNumber, r.Status, r.GSTStatus, r.GSTMode))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Rcti{}, ErrDuplicate
	}
	return created, err
}

func (s *Store) ListLines(ctx context.Context, rctiID int64) ([]Line, error) {
	return listLines(ctx, s.DB, rctiID)
}

func (s *Store) ListLinesTx(ctx context.Context, tx pgx.Tx, rctiID int64) ([]Line, error) {
	return listLines(ctx, tx, rctiID)
}

func listLines(ctx context.Context, q querier.Querier, rctiID int64) ([]Line, error) {
	rows, err := q.Query(ctx, "SELECT "+lineColumns+" FROM rcti_lines WHERE rcti_id = $1 ORDER BY id ASC", rctiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) GetLineTx(ctx context.Context, tx pgx.Tx, rctiID, lineID int64) (Line, error) {
	l, err := scanLine(tx.QueryRow(ctx, "SELECT "+lineColumns+" FROM rcti_lines WHERE id = $1 AND rcti_id = $2", lineID, rctiID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, ErrLineNotFound
	}
	return l, err
}

func (s *Store) InsertLineTx(ctx context.Context, tx pgx.Tx, l Line) (Line, error) {
	return scanLine(tx.QueryRow(ctx, `
    INSERT INTO rcti_lines (rcti_id, job_id, job_date, customer, truck_type, description,
      charged_hours, rate_per_hour, amount_ex_gst, gst_amount, amount_inc_gst)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    RETURNING `+lineColumns,
		l.RctiID, l.JobID, l.JobDate, l.Customer, l.TruckType, l.Description,
		l.ChargedHours, l.RatePerHour, l.AmountExGST, l.GSTAmount, l.AmountIncGST))
}

func (s *Store) DeleteLineTx(ctx context.Context, tx pgx.Tx, lineID int64) error {
	_, err := tx.Exec(ctx, "DELETE FROM rcti_lines WHERE id = $1", lineID)
	return err
}

func (s *Store) DeleteBreakLinesTx(ctx context.Context, tx pgx.Tx, rctiID int64) error {
	_, err := tx.Exec(ctx, "DELETE FROM rcti_lines WHERE rcti_id = $1 AND job_id IS NULL AND customer = $2", rctiID, BreakCustomer)
	return err
}

func (s *Store) UpdateTotalsTx(ctx context.Context, tx pgx.Tx, rctiID int64, totals Totals) error {
	_, err := tx.Exec(ctx, `
    UPDATE rctis SET subtotal = $2, gst = $3, total = $4
    WHERE id = $1 AND status = $5
  `, rctiID, totals.Subtotal, totals.GST, totals.Total, StatusDraft)
	return err
}

// FinalizeTx applies the net deduction adjustment once and freezes the
// invoice. The status guard makes a second finalize a no-op that reports
// ErrNotDraft.
func (s *Store) FinalizeTx(ctx context.Context, tx pgx.Tx, id int64, result deduction.ApplyResult) (Rcti, error) {
	r, err := scanRcti(tx.QueryRow(ctx, `
    UPDATE rctis
    SET status = $2, finalized_at = now(), deduction_total = $3, reimbursement_total = $4,
        total = total + $4 - $3
    WHERE id = $1 AND status = $5
    RETURNING `+rctiColumns,
		id, StatusFinalised, result.TotalDeductionAmount, result.TotalReimbursementAmount, StatusDraft))
	if errors.Is(err, ErrNotFound) {
		return Rcti{}, ErrNotDraft
	}
	return r, err
}

func (s *Store) MarkPaid(ctx context.Context, id int64) (Rcti, error) {
	r, err := scanRcti(s.DB.QueryRow(ctx, `
    UPDATE rctis SET status = $2, paid_at = now()
    WHERE id = $1 AND status = $3
    RETURNING `+rctiColumns, id, StatusPaid, StatusFinalised))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return Rcti{}, getErr
		}
		return Rcti{}, ErrNotFinalised
	}
	return r, err
}
