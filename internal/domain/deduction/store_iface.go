package deduction

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LedgerReader backs the read-only pending projection.
type LedgerReader interface {
	ListActiveByDriver(ctx context.Context, driverID int64) ([]Deduction, error)
}

// LedgerWriter is what the application engine needs inside the caller's
// transaction.
type LedgerWriter interface {
	LockActiveByDriverTx(ctx context.Context, tx pgx.Tx, driverID int64) ([]Deduction, error)
	InsertApplicationTx(ctx context.Context, tx pgx.Tx, deductionID, rctiID int64, amount decimal.Decimal) error
	UpdateBalanceTx(ctx context.Context, tx pgx.Tx, d Deduction) error
}

type StoreAPI interface {
	LedgerReader
	LedgerWriter
	BeginTx(ctx context.Context) (pgx.Tx, error)
	DriverType(ctx context.Context, driverID int64) (string, error)
	List(ctx context.Context, filter ListFilter) ([]Deduction, error)
	Get(ctx context.Context, id int64) (Deduction, error)
	Create(ctx context.Context, d Deduction) (Deduction, error)
	LockTx(ctx context.Context, tx pgx.Tx, id int64) (Deduction, error)
	CountApplicationsTx(ctx context.Context, tx pgx.Tx, id int64) (int, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, d Deduction) (Deduction, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, id int64) error
	ListApplications(ctx context.Context, deductionID int64) ([]Application, error)
	ListApplicationsForRcti(ctx context.Context, rctiID int64) ([]Application, error)
}
