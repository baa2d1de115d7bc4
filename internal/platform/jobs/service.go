package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"worklog/internal/platform/querier"
)

const JobIdempotencyPurge = "idempotency_purge"

// Service runs maintenance work on a single background worker and records
// every run in job_runs.
type Service struct {
	DB       querier.Querier
	Interval time.Duration
	KeyTTL   time.Duration
	Now      func() time.Time
	queue    chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db querier.Querier, interval, keyTTL time.Duration) *Service {
	return &Service{
		DB:       db,
		Interval: interval,
		KeyTTL:   keyTTL,
		Now:      time.Now,
		queue:    make(chan job, 16),
	}
}

// Start launches the worker and, when an interval is set, the purge
// schedule. Both stop with ctx.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Interval > 0 && s.KeyTTL > 0 {
		go s.schedulePurge(ctx, s.Interval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	var runID int64
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1, $2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != 0 {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

// PurgeIdempotencyKeys deletes stored finalize responses older than the
// key TTL. Replays of a purged key run the request again.
func (s *Service) PurgeIdempotencyKeys(ctx context.Context) (any, error) {
	cutoff := s.Now().Add(-s.KeyTTL)
	tag, err := s.DB.Exec(ctx, "DELETE FROM idempotency_keys WHERE created_at < $1", cutoff)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"cutoff":  cutoff,
		"deleted": tag.RowsAffected(),
	}, nil
}

func (s *Service) schedulePurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobIdempotencyPurge, s.PurgeIdempotencyKeys)
		}
	}
}
