package ocr

import (
	"context"
	"fmt"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

type DocumentAIConfig struct {
	ProjectID   string
	Location    string // "us" or "eu"
	ProcessorID string
	Credentials string // service account JSON path; empty uses ADC
}

// DocumentAI recognizes pages with a Google Document AI OCR processor.
type DocumentAI struct {
	cfg     DocumentAIConfig
	client  *documentai.DocumentProcessorClient
	process func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)
}

func NewDocumentAI(ctx context.Context, cfg DocumentAIConfig) (*DocumentAI, error) {
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	d := &DocumentAI{cfg: cfg, client: client}
	d.process = func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return client.ProcessDocument(ctx, req)
	}
	return d, nil
}

func (d *DocumentAI) Name() string { return "documentai" }

func (d *DocumentAI) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *DocumentAI) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", d.cfg.ProjectID, d.cfg.Location, d.cfg.ProcessorID)
}

func (d *DocumentAI) Recognize(ctx context.Context, image []byte, lang string) (string, float64, error) {
	if len(image) == 0 {
		return "", 0, nil
	}
	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  image,
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
		ProcessOptions: &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{LanguageHints: []string{languageHint(lang)}},
			},
		},
	}
	resp, err := d.process(ctx, req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to process page: %w", err)
	}
	doc := resp.GetDocument()
	if doc == nil {
		return "", 0, nil
	}

	var sum float64
	var n int
	for _, p := range doc.GetPages() {
		if l := p.GetLayout(); l != nil {
			sum += float64(l.GetConfidence())
			n++
		}
	}
	if n == 0 {
		return doc.GetText(), 0, nil
	}
	return doc.GetText(), 100 * sum / float64(n), nil
}

// languageHint maps tesseract language codes to BCP-47 hints.
func languageHint(lang string) string {
	switch lang {
	case "por":
		return "pt"
	case "eng":
		return "en"
	case "spa":
		return "es"
	}
	return lang
}
