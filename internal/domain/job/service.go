package job

import (
	"context"
	"strings"
	"time"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Job, error) {
	return s.store.List(ctx, filter, limit, offset)
}

func (s *Service) Create(ctx context.Context, j Job) (Job, error) {
	j.Customer = strings.TrimSpace(j.Customer)
	j.TruckType = strings.TrimSpace(j.TruckType)
	j.Description = strings.TrimSpace(j.Description)
	j.Date = time.Date(j.Date.Year(), j.Date.Month(), j.Date.Day(), 0, 0, 0, 0, time.UTC)
	j.ChargedHours = j.ChargedHours.Round(2)
	if j.ChargedHours.IsNegative() {
		return Job{}, ErrInvalidHours
	}
	if j.RatePerHour != nil {
		rate := j.RatePerHour.Round(2)
		j.RatePerHour = &rate
	}
	return s.store.Create(ctx, j)
}
