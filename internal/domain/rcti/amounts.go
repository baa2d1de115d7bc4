package rcti

import (
	"github.com/shopspring/decimal"

	"worklog/internal/domain/driver"
)

// LineAmounts prices hours at rate under the invoice's GST treatment. Hours
// may be negative for deduction lines.
func LineAmounts(hours, rate decimal.Decimal, gstStatus, gstMode string) (exGST, gst, incGST decimal.Decimal) {
	gross := hours.Mul(rate).Round(2)
	switch {
	case gstStatus != driver.GSTRegistered:
		return gross, decimal.Zero, gross
	case gstMode == driver.GSTInclusive:
		exGST = gross.Div(gstMultiplier).Round(2)
		return exGST, gross.Sub(exGST), gross
	default:
		gst = gross.Mul(gstRate).Round(2)
		return gross, gst, gross.Add(gst)
	}
}

func priceLine(l Line, gstStatus, gstMode string) Line {
	l.ChargedHours = l.ChargedHours.Round(2)
	l.RatePerHour = l.RatePerHour.Round(2)
	l.AmountExGST, l.GSTAmount, l.AmountIncGST = LineAmounts(l.ChargedHours, l.RatePerHour, gstStatus, gstMode)
	return l
}

// SumLines totals the stored line amounts.
func SumLines(lines []Line) Totals {
	totals := Totals{Subtotal: decimal.Zero, GST: decimal.Zero, Total: decimal.Zero}
	for _, l := range lines {
		totals.Subtotal = totals.Subtotal.Add(l.AmountExGST)
		totals.GST = totals.GST.Add(l.GSTAmount)
		totals.Total = totals.Total.Add(l.AmountIncGST)
	}
	return totals
}
