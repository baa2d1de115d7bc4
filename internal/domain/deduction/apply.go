package deduction

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ApplyToRcti consumes ledger balances for an RCTI being finalized. It runs
// on the caller's transaction; the caller owns commit and rollback and must
// guarantee a single invocation per RCTI.
func ApplyToRcti(ctx context.Context, store LedgerWriter, tx pgx.Tx, in ApplyInput) (ApplyResult, error) {
	result := ApplyResult{
		Applied:                  []Applied{},
		TotalDeductionAmount:     decimal.Zero,
		TotalReimbursementAmount: decimal.Zero,
	}
	if err := in.Overrides.validate(); err != nil {
		return result, err
	}

	entries, err := store.LockActiveByDriverTx(ctx, tx, in.DriverID)
	if err != nil {
		return result, fmt.Errorf("lock deductions: %w", err)
	}

	for _, d := range entries {
		amount := AmountToApply(d.AmountPerCycle, d.AmountRemaining)
		if override, ok := in.Overrides[d.ID]; ok {
			if override == nil {
				continue
			}
			amount = OverrideAmount(*override, d.AmountRemaining)
		}
		if !amount.IsPositive() {
			continue
		}

		if err := store.InsertApplicationTx(ctx, tx, d.ID, in.RctiID, amount); err != nil {
			return result, fmt.Errorf("insert application for deduction %d: %w", d.ID, err)
		}
		if err := store.UpdateBalanceTx(ctx, tx, settle(d, amount)); err != nil {
			return result, fmt.Errorf("update deduction %d: %w", d.ID, err)
		}

		result.Applied = append(result.Applied, Applied{ID: d.ID, Type: d.Type, Description: d.Description, Amount: amount})
		switch d.Type {
		case TypeReimbursement:
			result.TotalReimbursementAmount = result.TotalReimbursementAmount.Add(amount)
		default:
			result.TotalDeductionAmount = result.TotalDeductionAmount.Add(amount)
		}
	}
	return result, nil
}
