package rcti

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"worklog/internal/domain/deduction"
	"worklog/internal/domain/driver"
	"worklog/internal/domain/job"
)

type BreakStore interface {
	GetTx(ctx context.Context, tx pgx.Tx, id int64) (Rcti, error)
	DriverTx(ctx context.Context, tx pgx.Tx, driverID int64) (driver.Driver, error)
	ListLinesTx(ctx context.Context, tx pgx.Tx, rctiID int64) ([]Line, error)
	DeleteBreakLinesTx(ctx context.Context, tx pgx.Tx, rctiID int64) error
	InsertLineTx(ctx context.Context, tx pgx.Tx, line Line) (Line, error)
	UpdateTotalsTx(ctx context.Context, tx pgx.Tx, rctiID int64, totals Totals) error
}

type StoreAPI interface {
	BreakStore
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Get(ctx context.Context, id int64) (Rcti, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]Rcti, error)
	ListLines(ctx context.Context, rctiID int64) ([]Line, error)
	Driver(ctx context.Context, driverID int64) (driver.Driver, error)
	LockTx(ctx context.Context, tx pgx.Tx, id int64) (Rcti, error)
	CreateTx(ctx context.Context, tx pgx.Tx, r Rcti) (Rcti, error)
	JobsForWeekTx(ctx context.Context, tx pgx.Tx, driverID int64, weekEnding time.Time) ([]job.Job, error)
	GetLineTx(ctx context.Context, tx pgx.Tx, rctiID, lineID int64) (Line, error)
	DeleteLineTx(ctx context.Context, tx pgx.Tx, lineID int64) error
	FinalizeTx(ctx context.Context, tx pgx.Tx, id int64, result deduction.ApplyResult) (Rcti, error)
	MarkPaid(ctx context.Context, id int64) (Rcti, error)
}

// Ledger is the slice of the deduction store an invoice needs.
type Ledger interface {
	deduction.LedgerReader
	deduction.LedgerWriter
	ListApplicationsForRcti(ctx context.Context, rctiID int64) ([]deduction.Application, error)
}
