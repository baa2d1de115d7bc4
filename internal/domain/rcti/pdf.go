package rcti

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"worklog/internal/domain/deduction"
	"worklog/internal/domain/driver"
)

var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"Date", 22, "L"},
	{"Customer", 42, "L"},
	{"Truck", 24, "L"},
	{"Hours", 16, "R"},
	{"Rate", 20, "R"},
	{"Ex GST", 22, "R"},
	{"GST", 18, "R"},
	{"Inc GST", 22, "R"},
}

// RenderPDF writes the invoice document. Drafts list the deductions a
// finalize would apply; finalised invoices list the applied amounts.
func RenderPDF(w io.Writer, d Detail, company Company) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(d.InvoiceNumber, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	title := "Recipient Created Tax Invoice"
	if d.Status == StatusDraft {
		title += " (DRAFT)"
	}
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Invoice: %s    Week ending: %s    Status: %s", d.InvoiceNumber, d.WeekEnding.Format("2006-01-02"), d.Status))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Recipient: %s  ABN %s", company.Name, orDash(company.ABN)))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Supplier: %s  ABN %s  (%s)", d.DriverName, orDash(d.DriverABN), gstLabel(d.GSTStatus, d.GSTMode)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 9)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, col.align, false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for _, l := range d.Lines {
		date := ""
		if l.JobDate != nil {
			date = l.JobDate.Format("2006-01-02")
		}
		values := []string{date, l.Customer, l.TruckType, l.ChargedHours.StringFixed(2), l.RatePerHour.StringFixed(2),
			l.AmountExGST.StringFixed(2), l.GSTAmount.StringFixed(2), l.AmountIncGST.StringFixed(2)}
		for i, col := range pdfColumns {
			pdf.CellFormat(col.width, 6, truncate(values[i], 26), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	summary := func(label string, value decimal.Decimal) {
		pdf.CellFormat(150, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(36, 6, value.StringFixed(2), "", 1, "R", false, 0, "")
	}
	summary("Subtotal", d.Subtotal)
	summary("GST", d.GST)

	if d.Status == StatusDraft {
		lineTotal := d.Total
		summary("Total (before deductions)", lineTotal)
		if len(d.PendingDeductions) > 0 {
			pdf.Ln(4)
			pdf.SetFont("Helvetica", "B", 10)
			pdf.Cell(0, 6, "Pending deductions and reimbursements")
			pdf.Ln(7)
			pdf.SetFont("Helvetica", "", 9)
			net := decimal.Zero
			for _, p := range d.PendingDeductions {
				signed := signedAmount(p.Type, p.AmountToApply)
				net = net.Add(signed)
				pdf.CellFormat(150, 6, fmt.Sprintf("%s (%s, %s remaining)", p.Description, p.Frequency, p.AmountRemaining.StringFixed(2)), "", 0, "L", false, 0, "")
				pdf.CellFormat(36, 6, signed.StringFixed(2), "", 1, "R", false, 0, "")
			}
			pdf.SetFont("Helvetica", "B", 9)
			summary("Projected amount payable", lineTotal.Add(net))
		}
	} else {
		if len(d.Applications) > 0 {
			pdf.Ln(4)
			pdf.SetFont("Helvetica", "B", 10)
			pdf.Cell(0, 6, "Deductions and reimbursements applied")
			pdf.Ln(7)
			pdf.SetFont("Helvetica", "", 9)
			for _, a := range d.Applications {
				pdf.CellFormat(150, 6, a.Description, "", 0, "L", false, 0, "")
				pdf.CellFormat(36, 6, signedAmount(a.Type, a.Amount).StringFixed(2), "", 1, "R", false, 0, "")
			}
		}
		summary("Deductions", d.DeductionTotal.Neg())
		summary("Reimbursements", d.ReimbursementTotal)
		pdf.SetFont("Helvetica", "B", 9)
		summary("Amount payable", d.Total)
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func signedAmount(entryType string, amount decimal.Decimal) decimal.Decimal {
	if entryType == deduction.TypeReimbursement {
		return amount
	}
	return amount.Neg()
}

func gstLabel(status, mode string) string {
	if status != driver.GSTRegistered {
		return "not registered for GST"
	}
	return "GST " + mode
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "~"
}
