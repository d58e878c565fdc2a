/*
Package payslip renders a stored payroll slip as a one-page PDF.

USAGE:
  r := payslip.Renderer{FontPath: "/fonts/NanumGothic.ttf"}
  err := r.Render(w, employee, slip)

FONTS:
  Without FontPath the PDF core font Helvetica is used, which cannot show
  Hangul; names outside cp1252 come out as "?". Point FontPath at a UTF-8
  TrueType font to print them.
*/
package payslip

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/warp/payroll-engine/generic"
)

const utf8Family = "payslip"

type Renderer struct {
	FontPath string
}

type line struct {
	label  string
	amount generic.Money
}

// Render writes the PDF for slip to w.
func (r Renderer) Render(w io.Writer, emp generic.Employee, slip generic.PayrollSlip) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	family, translate := "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
	if r.FontPath != "" {
		pdf.AddUTF8Font(utf8Family, "", r.FontPath)
		pdf.AddUTF8Font(utf8Family, "B", r.FontPath)
		family, translate = utf8Family, func(s string) string { return s }
	}
	amount := amountFormatter()

	pdf.AddPage()
	pdf.SetFont(family, "B", 16)
	pdf.Cell(0, 10, translate(fmt.Sprintf("Payslip %s", slip.Period)))
	pdf.Ln(12)

	pdf.SetFont(family, "", 11)
	pdf.Cell(0, 7, translate(fmt.Sprintf("Employee: %s (%s)", emp.Name, emp.ID)))
	pdf.Ln(6)
	pdf.Cell(0, 7, translate(fmt.Sprintf("Workplace: %s", slip.WorkplaceID)))
	pdf.Ln(6)
	if slip.PayDate != nil {
		pdf.Cell(0, 7, fmt.Sprintf("Pay date: %s", slip.PayDate.Format("2006-01-02")))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	d := slip.Deductions
	rows := []line{
		{"Base pay", slip.BasePay},
		{"National pension", d.Pension},
		{"Health insurance", d.HealthInsurance},
		{"Employment insurance", d.EmploymentInsurance},
		{"Long-term care", d.LongTermCare},
		{"Income tax", d.IncomeTax},
		{"Local income tax", d.LocalIncomeTax},
	}
	for _, row := range rows {
		pdf.CellFormat(110, 7, row.label, "B", 0, "L", false, 0, "")
		pdf.CellFormat(60, 7, amount(row.amount), "B", 1, "R", false, 0, "")
	}

	pdf.SetFont(family, "B", 11)
	pdf.CellFormat(110, 8, "Total deductions", "", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, amount(slip.TotalDeductions), "", 1, "R", false, 0, "")
	pdf.CellFormat(110, 8, "Net pay", "T", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, amount(slip.NetPay), "T", 1, "R", false, 0, "")

	if !slip.ChecksumOK {
		pdf.Ln(4)
		pdf.SetFont(family, "", 9)
		pdf.Cell(0, 6, "Note: base pay minus deductions does not equal the ledger net pay.")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render payslip %s: %w", slip.ID, err)
	}
	return nil
}

// amountFormatter groups thousands the way the ledgers print them.
func amountFormatter() func(generic.Money) string {
	p := message.NewPrinter(language.Korean)
	return func(m generic.Money) string {
		return p.Sprintf("%d", m.Int64())
	}
}
