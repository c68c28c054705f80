package pdf

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// FPDF lays the receipt out on an A5 page: header, student block, the
// component table and the total in words.
type FPDF struct{}

var _ ports.ReceiptRenderer = FPDF{}

func (FPDF) Name() string { return "fpdf" }

func (FPDF) Render(b *domain.Billing, rc domain.ReceiptContext) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A5", "")
	doc.SetMargins(10, 10, 10)
	doc.SetAutoPageBreak(false, 10)
	doc.AddPage()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	pageW, _ := doc.GetPageSize()
	contentW := pageW - 20

	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(contentW, 7, tr(rc.SchoolName), "", 1, "C", false, 0, "")
	if rc.SchoolAddress != "" {
		doc.SetFont("Helvetica", "", 8)
		doc.MultiCell(contentW, 4, tr(rc.SchoolAddress), "", "C", false)
	}
	doc.Ln(2)
	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(contentW, 6, "FEE RECEIPT", "TB", 1, "C", false, 0, "")
	doc.Ln(2)

	doc.SetFont("Helvetica", "", 9)
	half := contentW / 2
	row := func(lk, lv, rk, rv string) {
		doc.CellFormat(half, 5, tr(lk+": "+lv), "", 0, "L", false, 0, "")
		doc.CellFormat(half, 5, tr(rk+": "+rv), "", 1, "R", false, 0, "")
	}
	row("Receipt No", rc.ReceiptNumber, "Date", rc.Date.Format("02-01-2006"))
	row("Student", rc.StudentName, "Admission No", dash(rc.AdmissionNumber))
	row("Class", dash(rc.ClassName), "Branch", dash(rc.BranchName))
	doc.Ln(3)

	amountW := 35.0
	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(235, 235, 235)
	doc.CellFormat(contentW-amountW, 6, "Particulars", "1", 0, "L", true, 0, "")
	doc.CellFormat(amountW, 6, "Amount (Rs.)", "1", 1, "R", true, 0, "")

	doc.SetFont("Helvetica", "", 9)
	for _, c := range rc.Components {
		doc.CellFormat(contentW-amountW, 6, tr(c.Name), "1", 0, "L", false, 0, "")
		doc.CellFormat(amountW, 6, fmt.Sprintf("%.2f", c.Amount), "1", 1, "R", false, 0, "")
	}
	doc.SetFont("Helvetica", "B", 9)
	doc.CellFormat(contentW-amountW, 6, "Total", "1", 0, "R", false, 0, "")
	doc.CellFormat(amountW, 6, fmt.Sprintf("%.2f", rc.Total), "1", 1, "R", false, 0, "")
	doc.Ln(3)

	doc.SetFont("Helvetica", "I", 9)
	doc.MultiCell(contentW, 5, tr(rc.AmountInWords), "", "L", false)
	doc.SetFont("Helvetica", "", 9)
	payment := "Payment Mode: " + rc.PaymentMode
	if rc.TransactionNo != "" {
		payment += "    Txn No: " + rc.TransactionNo
	}
	doc.CellFormat(contentW, 5, tr(payment), "", 1, "L", false, 0, "")

	doc.SetY(-25)
	doc.SetFont("Helvetica", "", 8)
	doc.CellFormat(contentW, 5, "Authorised Signatory", "", 1, "R", false, 0, "")
	doc.CellFormat(contentW, 4, "This is a computer generated receipt.", "", 1, "C", false, 0, "")

	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("fpdf: %w", err)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("fpdf: %w", err)
	}
	return buf.Bytes(), nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
