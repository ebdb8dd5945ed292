package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/pipeline"
	"github.com/joseph-ayodele/tariff-catalog/internal/repository"
)

// Service renders stored catalogs.
type Service struct {
	repo   repository.CatalogRepository
	logger *slog.Logger
}

func NewService(repo repository.CatalogRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportCatalogXLSX returns the provider's stored catalog as a workbook.
// The report sheet comes from the provider's latest run.
func (s *Service) ExportCatalogXLSX(ctx context.Context, providerID string) ([]byte, error) {
	return s.export(ctx, providerID, "xlsx", CatalogXLSX)
}

// ExportCatalogPDF returns the provider's stored catalog as a PDF table.
func (s *Service) ExportCatalogPDF(ctx context.Context, providerID string) ([]byte, error) {
	return s.export(ctx, providerID, "pdf", CatalogPDF)
}

type renderFunc func(string, []catalog.CandidateProcedure, *pipeline.RunReport) ([]byte, error)

func (s *Service) export(ctx context.Context, providerID, kind string, render renderFunc) ([]byte, error) {
	start := time.Now()

	rows, err := s.repo.GetCatalog(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	procs := make([]catalog.CandidateProcedure, len(rows))
	for i, r := range rows {
		procs[i] = r.Candidate()
	}

	rep, err := s.latestReport(ctx, providerID)
	if err != nil {
		// the catalog is still worth exporting
		s.logger.Warn("export.report_unavailable", "provider_id", providerID, "error", err)
	}

	b, err := render(providerID, procs, rep)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export."+kind+".ok",
		"provider_id", providerID,
		"rows", len(procs),
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

func (s *Service) latestReport(ctx context.Context, providerID string) (*pipeline.RunReport, error) {
	runs, err := s.repo.ListRuns(ctx, providerID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 || len(runs[0].Report) == 0 {
		return nil, nil
	}
	var rep pipeline.RunReport
	if err := json.Unmarshal(runs[0].Report, &rep); err != nil {
		return nil, fmt.Errorf("decode run report: %w", err)
	}
	return &rep, nil
}
