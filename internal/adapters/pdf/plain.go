package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// a5 in points.
const (
	a5Width  = 420
	a5Height = 595
)

// Plain writes a single-page text-only PDF by hand. It has no dependencies
// and serves as the fallback renderer.
type Plain struct{}

var _ ports.ReceiptRenderer = Plain{}

func (Plain) Name() string { return "plain" }

func (Plain) Render(b *domain.Billing, rc domain.ReceiptContext) ([]byte, error) {
	lines := []string{
		rc.SchoolName,
		rc.SchoolAddress,
		"FEE RECEIPT",
		"Receipt No: " + rc.ReceiptNumber + "   Date: " + rc.Date.Format("02-01-2006"),
		"Student: " + rc.StudentName + "   Admission No: " + dash(rc.AdmissionNumber),
		"Class: " + dash(rc.ClassName) + "   Branch: " + dash(rc.BranchName),
		"",
	}
	for _, c := range rc.Components {
		lines = append(lines, fmt.Sprintf("%-40s %12.2f", c.Name, c.Amount))
	}
	lines = append(lines,
		fmt.Sprintf("%-40s %12.2f", "Total", rc.Total),
		"",
		rc.AmountInWords,
		"Payment Mode: "+rc.PaymentMode,
	)
	if rc.TransactionNo != "" {
		lines = append(lines, "Txn No: "+rc.TransactionNo)
	}

	var content bytes.Buffer
	content.WriteString("BT /F1 9 Tf 11 TL 30 560 Td\n")
	for _, l := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", escapeText(l))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>", a5Width, a5Height),
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes(), nil
}

// escapeText keeps printable ASCII and escapes PDF string delimiters.
func escapeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r >= 32 && r < 127:
			b.WriteRune(r)
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}
