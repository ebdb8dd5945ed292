package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/export"
	"github.com/joseph-ayodele/tariff-catalog/internal/ingest"
	"github.com/joseph-ayodele/tariff-catalog/internal/pipeline"
	"github.com/joseph-ayodele/tariff-catalog/internal/repository"
	"github.com/joseph-ayodele/tariff-catalog/internal/utils"
)

// Job asks for one provider PDF to be extracted.
type Job struct {
	ID          string    `json:"job_id"`
	ProviderID  string    `json:"provider_id"`
	Path        string    `json:"path"`
	Force       bool      `json:"force,omitempty"` // run even if this content was already extracted
	SubmittedAt time.Time `json:"submitted_at"`
}

// Outcome is what Process did with a job.
type Outcome struct {
	RunID   string
	Result  pipeline.Result
	Skipped bool // same content already extracted for this provider
	Saved   bool
	Exports []string
}

// PipelineRunner is satisfied by *pipeline.Controller.
type PipelineRunner interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.Result, error)
}

// Processor runs jobs through the pipeline and stores the result.
type Processor struct {
	logger    *slog.Logger
	runner    PipelineRunner
	repo      repository.CatalogRepository // nil: results are not stored
	exportDir string                       // "": no exports
}

func NewProcessor(logger *slog.Logger, runner PipelineRunner, repo repository.CatalogRepository, exportDir string) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, runner: runner, repo: repo, exportDir: exportDir}
}

// Process loads the job's PDF, extracts its catalog and saves it. A
// malformed document is recorded as a failed run and returned as an error.
func (p *Processor) Process(ctx context.Context, job Job) (Outcome, error) {
	if err := validateJob(job); err != nil {
		return Outcome{}, err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	ctx = common.WithProviderID(common.WithRunID(ctx, job.ID), job.ProviderID)
	log := common.LoggerFromContext(ctx, p.logger)
	start := time.Now()
	out := Outcome{RunID: job.ID}

	data, err := ingest.ReadPDF(job.Path)
	if err != nil {
		log.Error("processor.read.failed", "path", job.Path, "error", err)
		p.saveFailure(ctx, job, repository.RunSource{Path: job.Path}, err)
		return out, common.WrapError(err, "read "+job.Path)
	}
	src := repository.RunSource{Path: job.Path, ContentHash: utils.SHA256Hex(data)}

	if p.repo != nil && !job.Force {
		prev, err := p.repo.FindRunByHash(ctx, job.ProviderID, src.ContentHash)
		switch {
		case err == nil:
			log.Info("processor.skip.duplicate", "previous_run_id", prev.ID, "hash", src.ContentHash)
			out.RunID = prev.ID
			out.Skipped = true
			return out, nil
		case !errors.Is(err, common.ErrNotFound):
			log.Warn("processor.dedup_lookup.failed", "error", err)
		}
	}

	res, err := p.runner.Run(ctx, pipeline.Input{ProviderID: job.ProviderID, PDF: data})
	if err != nil {
		log.Error("processor.pipeline.failed", "error", err)
		p.saveFailure(ctx, job, src, err)
		return out, err
	}
	out.Result = res

	if p.repo != nil {
		if _, err := p.repo.SaveRun(ctx, job.ProviderID, src, res); err != nil {
			return out, err
		}
		out.Saved = true
	}

	if p.exportDir != "" {
		paths, err := p.writeExports(job.ProviderID, res)
		if err != nil {
			log.Error("processor.export.failed", "dir", p.exportDir, "error", err)
			return out, err
		}
		out.Exports = paths
	}

	log.Info("processor.done",
		"status", res.Report.Status,
		"procedures", res.Catalog.Len(),
		"saved", out.Saved,
		"exports", len(out.Exports),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// validateJob checks a job before anything is read. The job id doubles as
// the run id, so a caller-supplied one must be a UUID.
func validateJob(job Job) error {
	v := common.NewValidator().
		Field("provider_id", job.ProviderID, common.Required, common.MaxLength(64), common.ProviderKey).
		Field("path", job.Path, common.Required)
	if job.ID != "" {
		v.Field("job_id", job.ID, common.UUID)
	}
	return v.Error()
}

func (p *Processor) saveFailure(ctx context.Context, job Job, src repository.RunSource, cause error) {
	if p.repo == nil {
		return
	}
	if _, err := p.repo.SaveFailedRun(ctx, job.ProviderID, job.ID, src, cause); err != nil {
		p.logger.Error("processor.save_failure.failed", "run_id", job.ID, "error", err)
	}
}

func (p *Processor) writeExports(providerID string, res pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(p.exportDir, 0o755); err != nil {
		return nil, err
	}
	procs := res.Catalog.Candidates()
	xlsx, err := export.CatalogXLSX(providerID, procs, &res.Report)
	if err != nil {
		return nil, err
	}
	pdf, err := export.CatalogPDF(providerID, procs, &res.Report)
	if err != nil {
		return nil, err
	}
	paths := []string{
		filepath.Join(p.exportDir, providerID+".xlsx"),
		filepath.Join(p.exportDir, providerID+".pdf"),
	}
	for i, b := range [][]byte{xlsx, pdf} {
		if err := os.WriteFile(paths[i], b, 0o644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
