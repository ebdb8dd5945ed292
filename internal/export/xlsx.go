package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/pipeline"
)

const (
	SheetCatalog = "Catalog"
	SheetReport  = "Report"

	// excelize built-in number format "#,##0.00"
	numFmtMoney = 4
)

// CatalogXLSX renders a catalog as a workbook. The Catalog sheet holds one
// row per procedure; the Report sheet is written only when rep is non-nil.
func CatalogXLSX(providerID string, procs []catalog.CandidateProcedure, rep *pipeline.RunReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCatalog); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: numFmtMoney})
	if err != nil {
		return nil, err
	}

	w := sheetWriter{f: f, sheet: SheetCatalog}
	w.row(bold, "Code", "Description", "Value", "Page")
	for _, p := range procs {
		var value any
		if p.Value != nil {
			value = p.Value.Float64()
		}
		w.row(0, p.Code, p.Description, value, p.Page)
	}
	if len(procs) > 0 {
		_ = f.SetCellStyle(SheetCatalog, "C2", fmt.Sprintf("C%d", len(procs)+1), money)
	}
	_ = f.SetColWidth(SheetCatalog, "A", "A", 16)
	_ = f.SetColWidth(SheetCatalog, "B", "B", 70)
	_ = f.SetColWidth(SheetCatalog, "C", "C", 14)
	_ = f.SetColWidth(SheetCatalog, "D", "D", 8)
	_ = f.SetPanes(SheetCatalog, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if rep != nil {
		if _, err := f.NewSheet(SheetReport); err != nil {
			return nil, err
		}
		writeReportSheet(f, providerID, rep, bold)
	}

	idx, _ := f.GetSheetIndex(SheetCatalog)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeReportSheet(f *excelize.File, providerID string, rep *pipeline.RunReport, bold int) {
	w := sheetWriter{f: f, sheet: SheetReport}
	w.row(bold, "Provider", providerID)
	w.row(0, "Run", rep.RunID)
	w.row(0, "Status", string(rep.Status))
	w.row(0, "Total pages", rep.TotalPages)
	w.row(0, "Contributing pages", rep.ContributingPages)
	w.row(0, "Candidates before dedup", rep.CandidatesBeforeDedup)
	w.row(0, "Candidates after dedup", rep.CandidatesAfterDedup)
	w.row(0, "Dropped candidates", rep.DroppedCandidates)
	w.row(0, "Duration (ms)", rep.Duration().Milliseconds())
	w.skip()

	w.row(bold, "Page", "Status", "Reason", "Candidates", "Confidence", "Language", "Chars", "Attempts", "Duration (ms)")
	for _, p := range rep.Pages {
		w.row(0, p.Index, string(p.Status), p.Reason, p.Candidates, p.Confidence, p.Language, p.Chars, p.Attempts, p.DurationMS)
	}

	if len(rep.Conflicts) > 0 {
		w.skip()
		w.row(bold, "Conflict", "Values", "Kept")
		for _, c := range rep.Conflicts {
			values := make([]string, len(c.Values))
			for i, v := range c.Values {
				values[i] = v.String()
			}
			kept := ""
			if c.Survivor.Value != nil {
				kept = c.Survivor.Value.String()
			}
			w.row(0, c.Code, strings.Join(values, " / "), kept)
		}
	}
	_ = f.SetColWidth(SheetReport, "A", "A", 24)
	_ = f.SetColWidth(SheetReport, "B", "C", 28)
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	n     int
}

func (w *sheetWriter) row(style int, values ...any) {
	w.n++
	start, _ := excelize.CoordinatesToCellName(1, w.n)
	_ = w.f.SetSheetRow(w.sheet, start, &values)
	if style != 0 {
		end, _ := excelize.CoordinatesToCellName(len(values), w.n)
		_ = w.f.SetCellStyle(w.sheet, start, end, style)
	}
}

func (w *sheetWriter) skip() { w.n++ }
