package export

import (
	"bytes"
	"fmt"

	"codeberg.org/go-pdf/fpdf"

	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/pipeline"
)

const (
	pdfCodeWidth  = 32.0
	pdfDescWidth  = 128.0
	pdfValueWidth = 30.0
	pdfRowHeight  = 6.0
)

// CatalogPDF renders a catalog as a plain A4 table.
func CatalogPDF(providerID string, procs []catalog.CandidateProcedure, rep *pipeline.RunReport) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Procedure catalog "+providerID, true)
	pdf.SetAutoPageBreak(true, 15)
	// core fonts are cp1252; descriptions are mostly Portuguese
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(pdfCodeWidth, pdfRowHeight+1, "Code", "1", 0, "L", true, 0, "")
		pdf.CellFormat(pdfDescWidth, pdfRowHeight+1, tr("Description"), "1", 0, "L", true, 0, "")
		pdf.CellFormat(pdfValueWidth, pdfRowHeight+1, "Value", "1", 1, "R", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s - page %d", tr(providerID), pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr("Procedure catalog: "+providerID), "", 1, "L", false, 0, "")
	if rep != nil {
		pdf.SetFont("Helvetica", "", 9)
		summary := fmt.Sprintf("Run %s  status %s  pages %d/%d  procedures %d  conflicts %d",
			rep.RunID, rep.Status, rep.ContributingPages, rep.TotalPages, len(procs), len(rep.Conflicts))
		pdf.CellFormat(0, 6, tr(summary), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
	header()

	for _, p := range procs {
		value := "-"
		if p.Value != nil {
			value = p.Value.String()
		}
		pdf.CellFormat(pdfCodeWidth, pdfRowHeight, tr(p.Code), "1", 0, "L", false, 0, "")
		pdf.CellFormat(pdfDescWidth, pdfRowHeight, fitText(pdf, tr(p.Description), pdfDescWidth-2), "1", 0, "L", false, 0, "")
		pdf.CellFormat(pdfValueWidth, pdfRowHeight, value, "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf write: %w", err)
	}
	return buf.Bytes(), nil
}

// fitText cuts s so it fits in width at the current font.
func fitText(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	const ellipsis = "..."
	for len(s) > 0 && pdf.GetStringWidth(s+ellipsis) > width {
		s = s[:len(s)-1]
	}
	return s + ellipsis
}
