package rcti

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX exports the invoice lines and its deduction activity as a
// workbook with one sheet each.
func WriteXLSX(w io.Writer, d Detail) error {
	f := excelize.NewFile()
	defer f.Close()

	linesSheet := "Lines"
	if err := f.SetSheetName("Sheet1", linesSheet); err != nil {
		return err
	}

	headers := []any{"Line ID", "Job ID", "Date", "Customer", "Truck Type", "Description", "Hours", "Rate", "Ex GST", "GST", "Inc GST"}
	if err := f.SetSheetRow(linesSheet, "A1", &headers); err != nil {
		return err
	}
	for i, l := range d.Lines {
		var jobID any
		if l.JobID != nil {
			jobID = *l.JobID
		}
		date := ""
		if l.JobDate != nil {
			date = l.JobDate.Format("2006-01-02")
		}
		row := []any{l.ID, jobID, date, l.Customer, l.TruckType, l.Description,
			l.ChargedHours.InexactFloat64(), l.RatePerHour.InexactFloat64(),
			l.AmountExGST.InexactFloat64(), l.GSTAmount.InexactFloat64(), l.AmountIncGST.InexactFloat64()}
		if err := f.SetSheetRow(linesSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	totalsRow := len(d.Lines) + 3
	summary := [][]any{
		{"Subtotal", d.Subtotal.InexactFloat64()},
		{"GST", d.GST.InexactFloat64()},
		{"Total", d.Total.InexactFloat64()},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(linesSheet, fmt.Sprintf("H%d", totalsRow+i), &row); err != nil {
			return err
		}
	}

	deductionSheet := "Deductions"
	if _, err := f.NewSheet(deductionSheet); err != nil {
		return err
	}
	if d.Status == StatusDraft {
		header := []any{"Deduction ID", "Type", "Description", "Frequency", "Remaining", "Pending"}
		if err := f.SetSheetRow(deductionSheet, "A1", &header); err != nil {
			return err
		}
		for i, p := range d.PendingDeductions {
			row := []any{p.ID, p.Type, p.Description, p.Frequency, p.AmountRemaining.InexactFloat64(), p.AmountToApply.InexactFloat64()}
			if err := f.SetSheetRow(deductionSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
				return err
			}
		}
	} else {
		header := []any{"Application ID", "Deduction ID", "Type", "Description", "Amount", "Applied At"}
		if err := f.SetSheetRow(deductionSheet, "A1", &header); err != nil {
			return err
		}
		for i, a := range d.Applications {
			row := []any{a.ID, a.DeductionID, a.Type, a.Description, a.Amount.InexactFloat64(), a.AppliedAt.Format("2006-01-02 15:04")}
			if err := f.SetSheetRow(deductionSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
