package rcti

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"worklog/internal/domain/driver"
)

type breakGroup struct {
	truckType string
	shifts    int64
	firstRate decimal.Decimal
}

// BreakLines derives one negative line per truck type from the job lines of
// an invoice. Manual lines and existing break lines are ignored.
func BreakLines(r Rcti, drv driver.Driver, lines []Line) []Line {
	if !drv.Breaks.IsPositive() {
		return nil
	}

	var groups []*breakGroup
	byType := map[string]*breakGroup{}
	for _, l := range lines {
		if l.JobID == nil || !l.ChargedHours.IsPositive() {
			continue
		}
		g, ok := byType[l.TruckType]
		if !ok {
			g = &breakGroup{truckType: l.TruckType, firstRate: l.RatePerHour}
			byType[l.TruckType] = g
			groups = append(groups, g)
		}
		g.shifts++
	}

	weekEnding := r.WeekEnding
	out := make([]Line, 0, len(groups))
	for _, g := range groups {
		hours := drv.Breaks.Mul(decimal.NewFromInt(g.shifts))
		rate, ok := drv.RateFor(g.truckType)
		if !ok {
			rate = g.firstRate
		}
		out = append(out, priceLine(Line{
			RctiID:       r.ID,
			JobDate:      &weekEnding,
			Customer:     BreakCustomer,
			TruckType:    g.truckType,
			Description:  fmt.Sprintf("Meal breaks: %s h x %d shifts", drv.Breaks.StringFixed(2), g.shifts),
			ChargedHours: hours.Neg(),
			RatePerHour:  rate,
		}, r.GSTStatus, r.GSTMode))
	}
	return out
}

// RecalculateBreaksAndTotals rebuilds the break lines of an invoice and
// stores totals summed over every line. Running it twice leaves the same
// state.
func RecalculateBreaksAndTotals(ctx context.Context, store BreakStore, tx pgx.Tx, rctiID int64) (Totals, error) {
	r, err := store.GetTx(ctx, tx, rctiID)
	if err != nil {
		return Totals{}, err
	}
	drv, err := store.DriverTx(ctx, tx, r.DriverID)
	if err != nil {
		return Totals{}, fmt.Errorf("load driver: %w", err)
	}
	if err := store.DeleteBreakLinesTx(ctx, tx, rctiID); err != nil {
		return Totals{}, fmt.Errorf("delete break lines: %w", err)
	}

	lines, err := store.ListLinesTx(ctx, tx, rctiID)
	if err != nil {
		return Totals{}, err
	}
	for _, l := range BreakLines(r, drv, lines) {
		inserted, err := store.InsertLineTx(ctx, tx, l)
		if err != nil {
			return Totals{}, fmt.Errorf("insert break line: %w", err)
		}
		lines = append(lines, inserted)
	}

	totals := SumLines(lines)
	if err := store.UpdateTotalsTx(ctx, tx, rctiID, totals); err != nil {
		return Totals{}, fmt.Errorf("update totals: %w", err)
	}
	return totals, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
