package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/tariff-catalog/constants"
	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/entity"
	"github.com/joseph-ayodele/tariff-catalog/internal/pipeline"
	"github.com/joseph-ayodele/tariff-catalog/internal/raster"
	"github.com/joseph-ayodele/tariff-catalog/internal/repository"
)

func sampleProcs() []catalog.CandidateProcedure {
	return []catalog.CandidateProcedure{
		{Code: "A1.01.01.01", Description: "Consulta geral odontológica", Value: catalog.AmountPtr(15.75), Page: 1},
		{Code: "A2.02.01.01", Description: "Raio-X panorâmico digital", Page: 2},
	}
}

func sampleReport() *pipeline.RunReport {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &pipeline.RunReport{
		RunID:             "run-1",
		Status:            constants.RunPartial,
		TotalPages:        2,
		ContributingPages: 1,
		Pages: []pipeline.PageOutcome{
			{Index: 1, Status: constants.PageContributed, Candidates: 2, Confidence: 91.5},
			{Index: 2, Status: constants.PageParseFailed, Reason: "invalid json"},
		},
		Conflicts: []catalog.Conflict{{
			Code:     "A1.01.01.01",
			Values:   []catalog.Amount{catalog.NewAmount(15), catalog.NewAmount(15.75)},
			Survivor: sampleProcs()[0],
		}},
		StartedAt:  now,
		FinishedAt: now.Add(3 * time.Second),
	}
}

func TestCatalogXLSX(t *testing.T) {
	b, err := CatalogXLSX("unimed", sampleProcs(), sampleReport())
	if err != nil {
		t.Fatalf("CatalogXLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetCatalog, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("catalog sheet has %d rows, want 3", len(rows))
	}
	if rows[0][0] != "Code" || rows[1][0] != "A1.01.01.01" || rows[1][2] != "15.75" {
		t.Errorf("catalog rows = %v", rows)
	}
	if rows[2][1] != "Raio-X panorâmico digital" || rows[2][2] != "" {
		t.Errorf("unpriced row = %v, want empty value cell", rows[2])
	}

	report, err := f.GetRows(SheetReport)
	if err != nil {
		t.Fatalf("GetRows(Report) error = %v", err)
	}
	var sawFailure, sawConflict bool
	for _, r := range report {
		if len(r) > 1 && r[1] == string(constants.PageParseFailed) {
			sawFailure = true
		}
		if len(r) > 1 && r[0] == "A1.01.01.01" && r[1] == "15.00 / 15.75" {
			sawConflict = true
		}
	}
	if !sawFailure || !sawConflict {
		t.Errorf("report sheet missing page failure (%v) or conflict (%v): %v", sawFailure, sawConflict, report)
	}
}

func TestCatalogXLSXWithoutReport(t *testing.T) {
	b, err := CatalogXLSX("unimed", nil, nil)
	if err != nil {
		t.Fatalf("CatalogXLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex(SheetReport); idx != -1 {
		t.Error("report sheet written without a report")
	}
}

func TestCatalogPDF(t *testing.T) {
	var procs []catalog.CandidateProcedure
	for i := range 120 {
		procs = append(procs, catalog.CandidateProcedure{
			Code:        fmt.Sprintf("A1.%03d", i),
			Description: "Restauração de resina composta em dente anterior, uma face, com acabamento e polimento completos",
			Value:       catalog.AmountPtr(float64(i) + 0.5),
		})
	}
	b, err := CatalogPDF("amil", procs, sampleReport())
	if err != nil {
		t.Fatalf("CatalogPDF() error = %v", err)
	}
	if !constants.LooksLikePDF(b) {
		t.Fatalf("output does not start with a PDF header: %q", b[:min(len(b), 16)])
	}
	n, err := raster.PDFCPUInspector{}.PageCount(b)
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if n < 2 {
		t.Errorf("120 rows rendered on %d page(s), want at least 2", n)
	}
}

type fakeRepo struct {
	repository.CatalogRepository
	rows []entity.Procedure
	runs []entity.ExtractionRun
	err  error
}

func (f fakeRepo) GetCatalog(context.Context, string) ([]entity.Procedure, error) {
	return f.rows, f.err
}

func (f fakeRepo) ListRuns(context.Context, string, int) ([]entity.ExtractionRun, error) {
	return f.runs, nil
}

func TestServiceExportUsesLatestReport(t *testing.T) {
	report, _ := json.Marshal(sampleReport())
	repo := fakeRepo{
		rows: []entity.Procedure{{ProviderID: "unimed", Code: "A1.01", Description: "Consulta", Value: catalog.AmountPtr(20)}},
		runs: []entity.ExtractionRun{{ID: "run-1", Report: report}},
	}
	b, err := NewService(repo, nil).ExportCatalogXLSX(context.Background(), "unimed")
	if err != nil {
		t.Fatalf("ExportCatalogXLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue(SheetReport, "B2"); v != "run-1" {
		t.Errorf("report run id = %q, want run-1", v)
	}
	if v, _ := f.GetCellValue(SheetCatalog, "A2"); v != "A1.01" {
		t.Errorf("catalog A2 = %q, want A1.01", v)
	}
}

func TestServiceExportPropagatesRepoError(t *testing.T) {
	repo := fakeRepo{err: fmt.Errorf("boom")}
	if _, err := NewService(repo, nil).ExportCatalogPDF(context.Background(), "x"); err == nil {
		t.Error("ExportCatalogPDF() error = nil, want repository error")
	}
}
