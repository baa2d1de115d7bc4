package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	clientErrors    uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64
	finalized       uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	switch {
	case status >= 500:
		atomic.AddUint64(&c.errorRequests, 1)
	case status == 429:
		atomic.AddUint64(&c.rateLimited, 1)
		atomic.AddUint64(&c.clientErrors, 1)
	case status >= 400:
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordFinalize counts RCTIs moved out of draft.
func (c *Collector) RecordFinalize() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.finalized, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":      total,
		"clientErrorsTotal":  atomic.LoadUint64(&c.clientErrors),
		"errorsTotal":        atomic.LoadUint64(&c.errorRequests),
		"rateLimitedTotal":   atomic.LoadUint64(&c.rateLimited),
		"rctiFinalizedTotal": atomic.LoadUint64(&c.finalized),
		"avgDurationMs":      avg,
		"totalDurationMs":    totalMs,
	}
}
