// Package parser turns recognized page text into candidate procedures by
// asking a language model for a fixed JSON document.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/llm"
	"github.com/joseph-ayodele/tariff-catalog/internal/ocr"
)

// Failure kinds recorded on a ParseFailure.
const (
	FailureExtraction  = "extraction"
	FailureInvalidJSON = "invalid_json"
	FailureSchema      = "schema"
	FailureCancelled   = "cancelled"
)

// ParseFailure is a page-local failure. It never aborts a run.
type ParseFailure struct {
	Page     int
	Kind     string
	Attempts int
	Err      error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse page %d: %s after %d attempt(s): %v", e.Page, e.Kind, e.Attempts, e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

type ParseResult struct {
	Candidates []catalog.CandidateProcedure
	// Dropped counts items without a usable code.
	Dropped  int
	Attempts int
	Raw      []byte
}

type Config struct {
	MaxAttempts  int           // default 3
	RetryBackoff time.Duration // linear, default 500ms per attempt
	// NoRetryInvalidOutput stops after the first malformed document
	// instead of asking again.
	NoRetryInvalidOutput bool
}

type Parser struct {
	cfg       Config
	extractor llm.ProcedureExtractor
	logger    *slog.Logger
}

func New(cfg Config, extractor llm.ProcedureExtractor, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Parser{cfg: cfg, extractor: extractor, logger: logger}
}

// Parse extracts candidates from one page. The error, when non-nil, is a
// *ParseFailure and the result still reports the attempts made.
func (p *Parser) Parse(ctx context.Context, page ocr.PageText) (ParseResult, error) {
	log := common.LoggerFromContext(ctx, p.logger)
	req := llm.ExtractRequest{
		ProviderID: common.ProviderIDFromContext(ctx),
		PageIndex:  page.Index,
		Text:       page.Text,
		Language:   page.Language,
	}

	var (
		res      ParseResult
		lastErr  error
		lastKind string
	)
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.backoff(ctx, attempt-1); err != nil {
				lastErr, lastKind = err, FailureCancelled
				break
			}
		}
		if err := ctx.Err(); err != nil {
			lastErr, lastKind = err, FailureCancelled
			break
		}
		res.Attempts = attempt

		raw, err := p.extractor.ExtractProcedures(ctx, req)
		if err != nil {
			lastErr, lastKind = err, FailureExtraction
			log.Warn("parser.extract.error", "page", page.Index, "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				lastErr, lastKind = ctx.Err(), FailureCancelled
				break
			}
			continue
		}
		res.Raw = raw

		doc, kind, err := decode(raw)
		if err != nil {
			lastErr, lastKind = err, kind
			log.Warn("parser.output.invalid", "page", page.Index, "attempt", attempt, "kind", kind, "error", err)
			if p.cfg.NoRetryInvalidOutput {
				break
			}
			continue
		}

		res.Candidates, res.Dropped = candidates(doc, page.Index)
		log.Info("parser.page.ok",
			"page", page.Index,
			"attempts", attempt,
			"items", len(doc.Procedures),
			"candidates", len(res.Candidates),
			"dropped", res.Dropped,
		)
		return res, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	fail := &ParseFailure{Page: page.Index, Kind: lastKind, Attempts: res.Attempts, Err: lastErr}
	log.Warn("parser.page.failed", "page", page.Index, "kind", lastKind, "attempts", res.Attempts, "error", lastErr)
	return res, fail
}

func (p *Parser) backoff(ctx context.Context, n int) error {
	t := time.NewTimer(time.Duration(n) * p.cfg.RetryBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// decode strips a markdown fence and validates the document against the
// schema. Items are never repaired: a missing, extra or mistyped key fails
// the page.
func decode(raw []byte) (llm.ProcedureDocument, string, error) {
	body := llm.StripCodeFences(raw)
	if !json.Valid(body) {
		return llm.ProcedureDocument{}, FailureInvalidJSON, errors.New("invalid json")
	}
	if err := llm.ValidateProcedureDocument(body); err != nil {
		return llm.ProcedureDocument{}, FailureSchema, err
	}
	doc, err := llm.DecodeProcedureDocument(body)
	if err != nil {
		return llm.ProcedureDocument{}, FailureSchema, fmt.Errorf("decode procedures: %w", err)
	}
	return doc, "", nil
}

func candidates(doc llm.ProcedureDocument, page int) ([]catalog.CandidateProcedure, int) {
	out := make([]catalog.CandidateProcedure, 0, len(doc.Procedures))
	dropped := 0
	for _, item := range doc.Procedures {
		c, ok := catalog.NewCandidate(item.Code, item.Description, catalog.ParseAmount(item.Value), page)
		if !ok {
			dropped++
			continue
		}
		out = append(out, c)
	}
	return out, dropped
}
