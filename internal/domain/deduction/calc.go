package deduction

import "github.com/shopspring/decimal"

// Money rounds to cents, half away from zero.
func Money(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// AmountToApply is the scheduled amount for one cycle.
func AmountToApply(perCycle, remaining decimal.Decimal) decimal.Decimal {
	return clamp(perCycle, remaining)
}

// OverrideAmount caps a user supplied amount at the remaining balance.
// Negative values apply nothing.
func OverrideAmount(override, remaining decimal.Decimal) decimal.Decimal {
	return clamp(override, remaining)
}

func clamp(amount, remaining decimal.Decimal) decimal.Decimal {
	out := Money(decimal.Min(amount, remaining))
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// settle records a payment against the entry, keeping
// amountRemaining = totalAmount - amountPaid.
func settle(d Deduction, amount decimal.Decimal) Deduction {
	d.AmountPaid = Money(d.AmountPaid.Add(amount))
	d.AmountRemaining = Money(d.TotalAmount.Sub(d.AmountPaid))
	if !d.AmountRemaining.IsPositive() {
		d.AmountRemaining = decimal.Zero
		d.Status = StatusCompleted
	}
	return d
}

// normalizeSchedule forces the per-cycle amount for one-off entries.
func normalizeSchedule(frequency string, total decimal.Decimal, perCycle *decimal.Decimal) decimal.Decimal {
	if frequency == FrequencyOnce || perCycle == nil {
		return Money(total)
	}
	return Money(*perCycle)
}
