package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"worklog/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const jobColumns = "id, job_date, driver_id, customer, truck_type, description, charged_hours, rate_per_hour, created_at"

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Date, &j.DriverID, &j.Customer, &j.TruckType, &j.Description, &j.ChargedHours, &j.RatePerHour, &j.CreatedAt)
	return j, err
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE 1=1"
	var args []any
	if filter.DriverID > 0 {
		args = append(args, filter.DriverID)
		query += fmt.Sprintf(" AND driver_id = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND job_date >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND job_date <= $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY job_date ASC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ForDriverWeek returns the driver's jobs dated within the seven days ending
// on weekEnding, inclusive.
func (s *Store) ForDriverWeek(ctx context.Context, q querier.Querier, driverID int64, weekEnding time.Time) ([]Job, error) {
	rows, err := q.Query(ctx, `
    SELECT `+jobColumns+`
    FROM jobs
    WHERE driver_id = $1 AND job_date BETWEEN $2 AND $3
    ORDER BY job_date ASC, id ASC
  `, driverID, WeekStart(weekEnding), weekEnding)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) Create(ctx context.Context, j Job) (Job, error) {
	created, err := scanJob(s.DB.QueryRow(ctx, `
    INSERT INTO jobs (job_date, driver_id, customer, truck_type, description, charged_hours, rate_per_hour)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING `+jobColumns,
		j.Date, j.DriverID, j.Customer, j.TruckType, j.Description, j.ChargedHours, j.RatePerHour))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return Job{}, ErrDriverNotFound
	}
	return created, err
}

func collect(rows pgx.Rows) ([]Job, error) {
	defer rows.Close()
	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func WeekStart(weekEnding time.Time) time.Time {
	return weekEnding.AddDate(0, 0, -6)
}
