package deduction

import (
	"context"
	"time"
)

// PendingForDriver projects what finalizing an RCTI now would take from each
// active entry. It never writes. weekEnding does not gate inclusion; future
// dated entries are listed like any other.
func PendingForDriver(ctx context.Context, store LedgerReader, driverID int64, weekEnding time.Time) ([]Pending, error) {
	entries, err := store.ListActiveByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	out := make([]Pending, 0, len(entries))
	for _, d := range entries {
		out = append(out, Pending{
			ID:              d.ID,
			Type:            d.Type,
			Description:     d.Description,
			Frequency:       d.Frequency,
			AmountRemaining: d.AmountRemaining,
			AmountToApply:   AmountToApply(d.AmountPerCycle, d.AmountRemaining),
		})
	}
	return out, nil
}
