package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/llm"
	"github.com/joseph-ayodele/tariff-catalog/internal/llm/langchain"
	"github.com/joseph-ayodele/tariff-catalog/internal/llm/openai"
	"github.com/joseph-ayodele/tariff-catalog/internal/ocr"
	"github.com/joseph-ayodele/tariff-catalog/internal/parser"
	"github.com/joseph-ayodele/tariff-catalog/internal/pipeline"
	"github.com/joseph-ayodele/tariff-catalog/internal/raster"
	"github.com/joseph-ayodele/tariff-catalog/internal/utils"
)

// Stack is the assembled extraction pipeline.
type Stack struct {
	Rasterizer *raster.Rasterizer
	Recognizer *ocr.Recognizer
	Parser     *parser.Parser
	Controller *pipeline.Controller

	closers []func() error
}

// Close releases engine clients.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// BuildStack wires every stage from configuration.
func BuildStack(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runner := utils.NewExecRunner(logger)
	s := &Stack{}

	s.Rasterizer = raster.New(raster.Config{
		Pdftoppm: cfg.Raster.Pdftoppm,
		Scale:    cfg.Raster.Scale,
		MaxPages: cfg.Raster.MaxPages,
	}, runner, raster.PDFCPUInspector{}, logger)

	engine, closeEngine, err := NewOCREngine(ctx, cfg.OCR, runner)
	if err != nil {
		return nil, err
	}
	if closeEngine != nil {
		s.closers = append(s.closers, closeEngine)
	}
	s.Recognizer = ocr.NewRecognizer(ocr.Config{
		Lang:             cfg.OCR.Lang,
		FallbackLangs:    cfg.OCR.FallbackLangs,
		AcceptConfidence: cfg.OCR.AcceptConfidence,
		MinTextLength:    cfg.Pipeline.MinTextLength,
	}, engine, logger)

	extractor, err := NewExtractor(cfg.LLM, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Parser = parser.New(parser.Config{
		MaxAttempts:  cfg.LLM.MaxAttempts,
		RetryBackoff: cfg.LLM.RetryBackoff,
	}, extractor, logger)

	merger := catalog.NewMerger(catalog.Weights{
		Price:       cfg.Merge.PriceWeight,
		Description: cfg.Merge.DescriptionWeight,
	})
	s.Controller = pipeline.NewController(pipeline.Config{
		Concurrency:        cfg.Pipeline.Concurrency,
		RecognitionTimeout: cfg.Pipeline.RecognitionTimeout,
		ParseTimeout:       cfg.Pipeline.ParseTimeout,
		MinTextLength:      cfg.Pipeline.MinTextLength,
	}, s.Rasterizer, s.Recognizer, s.Parser, merger, logger)

	logger.Info("pipeline stack ready",
		"ocr_engine", engine.Name(),
		"llm_provider", cfg.LLM.Provider,
		"concurrency", cfg.Pipeline.Concurrency,
	)
	return s, nil
}

// NewOCREngine returns the configured recognition engine and, for remote
// engines, a close func.
func NewOCREngine(ctx context.Context, cfg common.OCRConfig, runner utils.Runner) (ocr.Engine, func() error, error) {
	switch cfg.Engine {
	case "tesseract", "":
		return ocr.NewTesseract(ocr.TesseractConfig{
			Binary:      cfg.Tesseract,
			TessdataDir: cfg.TessdataDir,
			PSM:         cfg.PSM,
			OEM:         cfg.OEM,
		}, runner), nil, nil
	case "gosseract":
		e, err := newGosseract(cfg)
		return e, nil, err
	case "documentai":
		d, err := ocr.NewDocumentAI(ctx, ocr.DocumentAIConfig{
			ProjectID:   cfg.DocAIProjectID,
			Location:    cfg.DocAILocation,
			ProcessorID: cfg.DocAIProcessorID,
			Credentials: cfg.DocAICredentials,
		})
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
	}
}

// NewExtractor returns the structured-output client for the configured
// provider: the OpenAI chat API directly, or a local model through
// langchaingo.
func NewExtractor(cfg common.LLMConfig, logger *slog.Logger) (llm.ProcedureExtractor, error) {
	switch cfg.Provider {
	case "openai", "":
		return openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), nil
	case "ollama":
		return langchain.New(langchain.Config{
			Provider:  "ollama",
			Model:     cfg.OllamaModel,
			ServerURL: cfg.OllamaURL,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
