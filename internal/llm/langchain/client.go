// Package langchain adapts langchaingo chat models (Ollama, OpenAI) to
// llm.ProcedureExtractor.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/joseph-ayodele/tariff-catalog/internal/llm"
)

var ErrEmptyCompletion = errors.New("empty completion")

type Config struct {
	Provider  string // ollama | openai
	Model     string
	ServerURL string // ollama host or OpenAI-compatible base URL
	APIKey    string
	MaxTokens int
}

type Client struct {
	cfg    Config
	model  llms.Model
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		model llms.Model
		err   error
	)
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "":
		opts := []ollama.Option{ollama.WithModel(cfg.Model), ollama.WithFormat("json")}
		if cfg.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
		}
		model, err = ollama.New(opts...)
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(cfg.APIKey)}
		if cfg.ServerURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ServerURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported langchain provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.Provider, err)
	}
	return NewWithModel(cfg, model, logger), nil
}

// NewWithModel wraps an existing model, e.g. a fake in tests.
func NewWithModel(cfg Config, model llms.Model, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, model: model, logger: logger}
}

func (c *Client) ExtractProcedures(ctx context.Context, req llm.ExtractRequest) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.extract.start",
		"req_id", rid, "provider", c.cfg.Provider, "model", c.cfg.Model,
		"page", req.PageIndex, "text_len", len(req.Text),
	)

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, llm.BuildSystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, llm.BuildUserPrompt(req)),
	}
	opts := []llms.CallOption{
		llms.WithTemperature(llm.Temperature),
		llms.WithJSONMode(),
	}
	if c.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.cfg.MaxTokens))
	}

	resp, err := c.model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		c.logger.Error("llm.extract.generate_error",
			"req_id", rid, "page", req.PageIndex, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return nil, ErrEmptyCompletion
	}

	content := strings.TrimSpace(resp.Choices[0].Content)
	c.logger.Info("llm.extract.ok",
		"req_id", rid, "page", req.PageIndex, "content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return []byte(content), nil
}
