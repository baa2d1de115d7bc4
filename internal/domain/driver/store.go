package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	cryptoutil "worklog/internal/platform/crypto"
	"worklog/internal/platform/querier"
)

type Store struct {
	DB     querier.Querier
	Crypto *cryptoutil.Service
}

func NewStore(db *pgxpool.Pool, crypto *cryptoutil.Service) *Store {
	return &Store{DB: db, Crypto: crypto}
}

const driverColumns = `id, name, type, breaks, gst_status, gst_mode, truck_rates, abn,
    bank_account, bank_account_enc, created_at, updated_at`

func (s *Store) scan(row pgx.Row) (Driver, error) {
	var d Driver
	var rates []byte
	var bankPlain string
	var bankEnc []byte
	if err := row.Scan(&d.ID, &d.Name, &d.Type, &d.Breaks, &d.GSTStatus, &d.GSTMode, &rates, &d.ABN,
		&bankPlain, &bankEnc, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Driver{}, err
	}
	d.TruckRates = map[string]decimal.Decimal{}
	if len(rates) > 0 {
		if err := json.Unmarshal(rates, &d.TruckRates); err != nil {
			return Driver{}, fmt.Errorf("decode truck rates: %w", err)
		}
	}
	d.BankAccount = s.Crypto.Open(bankEnc, bankPlain)
	return d, nil
}

func (s *Store) List(ctx context.Context, driverType string, limit, offset int) ([]Driver, error) {
	query := "SELECT " + driverColumns + " FROM drivers"
	args := []any{limit, offset}
	if driverType != "" {
		query += " WHERE type = $3"
		args = append(args, driverType)
	}
	query += " ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, q querier.Querier, id int64) (Driver, error) {
	if q == nil {
		q = s.DB
	}
	d, err := s.scan(q.QueryRow(ctx, "SELECT "+driverColumns+" FROM drivers WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Driver{}, ErrNotFound
	}
	return d, err
}

func (s *Store) encode(d Driver) ([]byte, []byte, string, error) {
	rates, err := json.Marshal(d.TruckRates)
	if err != nil {
		return nil, nil, "", err
	}
	bankEnc, bankPlain, err := s.Crypto.Seal(d.BankAccount)
	if err != nil {
		return nil, nil, "", fmt.Errorf("seal bank account: %w", err)
	}
	return rates, bankEnc, bankPlain, nil
}

func (s *Store) Create(ctx context.Context, d Driver) (Driver, error) {
	rates, bankEnc, bankPlain, err := s.encode(d)
	if err != nil {
		return Driver{}, err
	}
	return s.scan(s.DB.QueryRow(ctx, `
    INSERT INTO drivers (name, type, breaks, gst_status, gst_mode, truck_rates, abn, bank_account, bank_account_enc)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    RETURNING `+driverColumns,
		d.Name, d.Type, d.Breaks, d.GSTStatus, d.GSTMode, rates, d.ABN, bankPlain, bankEnc))
}

func (s *Store) Update(ctx context.Context, d Driver) (Driver, error) {
	rates, bankEnc, bankPlain, err := s.encode(d)
	if err != nil {
		return Driver{}, err
	}
	updated, err := s.scan(s.DB.QueryRow(ctx, `
    UPDATE drivers
    SET name = $2, type = $3, breaks = $4, gst_status = $5, gst_mode = $6, truck_rates = $7,
        abn = $8, bank_account = $9, bank_account_enc = $10, updated_at = now()
    WHERE id = $1
    RETURNING `+driverColumns,
		d.ID, d.Name, d.Type, d.Breaks, d.GSTStatus, d.GSTMode, rates, d.ABN, bankPlain, bankEnc))
	if errors.Is(err, pgx.ErrNoRows) {
		return Driver{}, ErrNotFound
	}
	return updated, err
}
