// Package pipeline drives a fee-table PDF through rasterization,
// recognition and parsing page by page, then merges the candidates into a
// procedure catalog.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/tariff-catalog/constants"
	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/ocr"
	"github.com/joseph-ayodele/tariff-catalog/internal/parser"
	"github.com/joseph-ayodele/tariff-catalog/internal/raster"
)

type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]raster.PageImage, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, img raster.PageImage) ocr.PageText
}

type PageParser interface {
	Parse(ctx context.Context, page ocr.PageText) (parser.ParseResult, error)
}

type Config struct {
	Concurrency        int           // default 4; 1 runs pages in order
	RecognitionTimeout time.Duration // default 2m
	ParseTimeout       time.Duration // default 90s
	MinTextLength      int           // default ocr.MinTextLength
}

type Input struct {
	ProviderID string
	PDF        []byte
}

type Result struct {
	Catalog *catalog.ProcedureCatalog
	Report  RunReport
}

type Controller struct {
	cfg        Config
	rasterizer Rasterizer
	recognizer Recognizer
	parser     PageParser
	merger     *catalog.Merger
	logger     *slog.Logger
}

func NewController(cfg Config, rz Rasterizer, rec Recognizer, p PageParser, m *catalog.Merger, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RecognitionTimeout <= 0 {
		cfg.RecognitionTimeout = 2 * time.Minute
	}
	if cfg.ParseTimeout <= 0 {
		cfg.ParseTimeout = 90 * time.Second
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = ocr.MinTextLength
	}
	if m == nil {
		m = catalog.NewMerger(catalog.DefaultWeights())
	}
	return &Controller{cfg: cfg, rasterizer: rz, recognizer: rec, parser: p, merger: m, logger: logger}
}

// accumulator is the only state shared between page workers.
type accumulator struct {
	mu         sync.Mutex
	candidates [][]catalog.CandidateProcedure // indexed by page position
	pages      []PageOutcome
	dropped    int
}

func (a *accumulator) add(pos int, out PageOutcome, cands []catalog.CandidateProcedure) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.candidates[pos] = cands
	a.pages = append(a.pages, out)
	a.dropped += out.Dropped
}

// Run processes one document. Only a malformed document is returned as an
// error; every page-level problem is recorded in the report. Cancellation
// yields whatever finished pages merged into, with status CANCELLED.
func (c *Controller) Run(ctx context.Context, in Input) (Result, error) {
	runID := common.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = common.WithRunID(ctx, runID)
	}
	if in.ProviderID != "" {
		ctx = common.WithProviderID(ctx, in.ProviderID)
	}
	log := common.LoggerFromContext(ctx, c.logger)

	report := RunReport{RunID: runID, ProviderID: in.ProviderID, StartedAt: time.Now().UTC()}
	log.Info("pipeline.run.start", "bytes", len(in.PDF), "concurrency", c.cfg.Concurrency)

	pages, err := c.rasterizer.Rasterize(ctx, in.PDF)
	switch {
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// cancelled before any page existed: an empty, cancelled run
		log.Warn("pipeline.run.rasterize_cancelled", "error", err)
		pages = nil
	case err != nil:
		log.Error("pipeline.run.rasterize_failed", "error", err)
		return Result{}, err
	}
	report.TotalPages = len(pages)

	acc := &accumulator{candidates: make([][]catalog.CandidateProcedure, len(pages))}

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for pos, img := range pages {
		if ctx.Err() != nil {
			acc.add(pos, PageOutcome{Index: img.Index, Status: constants.PageCancelled, Reason: "not started"}, nil)
			continue
		}
		g.Go(func() error {
			out, cands := c.processPage(ctx, log, img)
			acc.add(pos, out, cands)
			return nil
		})
	}
	_ = g.Wait()

	// every worker has finished; merge in page order
	var all []catalog.CandidateProcedure
	for _, cands := range acc.candidates {
		all = append(all, cands...)
	}
	merged := c.merger.Merge(all)

	slices.SortFunc(acc.pages, func(a, b PageOutcome) int { return a.Index - b.Index })
	report.Pages = acc.pages
	report.SkippedPages = []int{}
	for _, p := range report.Pages {
		switch p.Status {
		case constants.PageContributed:
			report.ContributingPages++
		case constants.PageSkippedInsufficientText:
			report.SkippedPages = append(report.SkippedPages, p.Index)
		}
	}
	report.CandidatesBeforeDedup = len(all)
	report.CandidatesAfterDedup = merged.Catalog.Len()
	report.DroppedCandidates = acc.dropped + merged.Dropped
	report.Conflicts = merged.Conflicts
	report.Status = runStatus(report.Pages, report.ContributingPages, ctx.Err() != nil)
	report.FinishedAt = time.Now().UTC()

	catalogOut := merged.Catalog
	if report.Status == constants.RunTotalFailure {
		catalogOut = catalog.Empty()
	}

	log.Info("pipeline.run.done",
		"status", report.Status,
		"pages", report.TotalPages,
		"contributing", report.ContributingPages,
		"skipped", len(report.SkippedPages),
		"candidates", report.CandidatesBeforeDedup,
		"procedures", report.CandidatesAfterDedup,
		"conflicts", len(report.Conflicts),
		"duration_ms", report.Duration().Milliseconds(),
	)
	return Result{Catalog: catalogOut, Report: report}, nil
}

func (c *Controller) processPage(ctx context.Context, log *slog.Logger, img raster.PageImage) (PageOutcome, []catalog.CandidateProcedure) {
	start := time.Now()
	out := PageOutcome{Index: img.Index}
	done := func(status constants.PageStatus, reason string) PageOutcome {
		out.Status, out.Reason = status, reason
		out.DurationMS = time.Since(start).Milliseconds()
		return out
	}

	if ctx.Err() != nil {
		return done(constants.PageCancelled, "not started"), nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.cfg.RecognitionTimeout)
	text := c.recognizer.Recognize(rctx, img)
	cancel()
	out.Confidence, out.Language = text.Confidence, text.Language
	out.Chars = utf8.RuneCountInString(text.Text)

	if text.Err != nil {
		status := classify(ctx, text.Err, constants.PageRecognitionFailed)
		log.Warn("pipeline.page.failed", "page", img.Index, "stage", "recognition", "status", status, "error", text.Err)
		return done(status, text.Err.Error()), nil
	}
	if !ocr.Sufficient(text.Text, c.cfg.MinTextLength) {
		log.Info("pipeline.page.skipped", "page", img.Index, "chars", out.Chars, "confidence", text.Confidence)
		return done(constants.PageSkippedInsufficientText, "recognized text below minimum length"), nil
	}

	pctx, cancel := context.WithTimeout(ctx, c.cfg.ParseTimeout)
	res, err := c.parser.Parse(pctx, text)
	cancel()
	out.Attempts, out.Dropped = res.Attempts, res.Dropped
	if err != nil {
		status := classify(ctx, err, constants.PageParseFailed)
		log.Warn("pipeline.page.failed", "page", img.Index, "stage", "parse", "status", status, "attempts", res.Attempts, "error", err)
		return done(status, err.Error()), nil
	}

	out.Candidates = len(res.Candidates)
	if len(res.Candidates) == 0 {
		log.Info("pipeline.page.ok", "page", img.Index, "candidates", 0)
		return done(constants.PageNoCandidates, ""), nil
	}
	log.Info("pipeline.page.ok", "page", img.Index, "candidates", out.Candidates, "dropped", out.Dropped, "confidence", out.Confidence)
	return done(constants.PageContributed, ""), res.Candidates
}

// classify maps a stage error to a page status. A cancelled run wins over
// a per-call deadline.
func classify(runCtx context.Context, err error, fallback constants.PageStatus) constants.PageStatus {
	switch {
	case runCtx.Err() != nil:
		return constants.PageCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return constants.PageTimeout
	}
	return fallback
}
