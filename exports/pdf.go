package exports

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin     = 10.0
	pdfRowHeight  = 6.0
	pdfFontSize   = 8.0
	pdfMaxColumns = 14
)

// WritePDF renders the table on landscape A4 pages with a repeated header row
// and "Page n/N" footers. Columns share the page width in proportion to their
// longest cell.
func WritePDF(w io.Writer, t Table) error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table %q has no columns", t.Title)
	}
	if len(t.Headers) > pdfMaxColumns {
		return fmt.Errorf("table %q has %d columns, PDF supports at most %d", t.Title, len(t.Headers), pdfMaxColumns)
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	// core fonts have no rupee glyph
	clean := func(s string) string { return tr(strings.ReplaceAll(s, "₹", "Rs. ")) }

	pageW, _ := pdf.GetPageSize()
	widths := columnWidths(t, pageW-2*pdfMargin)

	header := func() {
		pdf.SetFont("Helvetica", "B", pdfFontSize)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range t.Headers {
			pdf.CellFormat(widths[i], pdfRowHeight+1, clean(h), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", pdfFontSize)
	}

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, clean(t.Title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 5, "Generated "+t.GeneratedAt.Format("02 Jan 2006 15:04"), "", 1, "L", false, 0, "")
		pdf.Ln(2)
		header()
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	for _, row := range t.Rows {
		for i := range t.Headers {
			cell := ""
			if i < len(row) {
				cell = clean(row[i])
			}
			pdf.CellFormat(widths[i], pdfRowHeight, fitText(pdf, cell, widths[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(t.Rows) == 0 {
		pdf.CellFormat(0, pdfRowHeight, "No records.", "1", 1, "C", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return pdf.Output(w)
}

// columnWidths splits total across columns by their widest cell, clamped so
// no column collapses or dominates.
func columnWidths(t Table, total float64) []float64 {
	weights := make([]float64, len(t.Headers))
	sum := 0.0
	for i, h := range t.Headers {
		longest := len(h)
		for _, row := range t.Rows {
			if i < len(row) && len(row[i]) > longest {
				longest = len(row[i])
			}
		}
		weights[i] = float64(min(max(longest, 4), 40))
		sum += weights[i]
	}
	widths := make([]float64, len(weights))
	for i, wt := range weights {
		widths[i] = total * wt / sum
	}
	return widths
}

// fitText truncates s with "..." so it fits in width.
func fitText(pdf *fpdf.Fpdf, s string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}
