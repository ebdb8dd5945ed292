//go:build gosseract

// Package gosseract is an in-process tesseract engine. It needs the
// tesseract and leptonica headers at build time (-tags gosseract).
package gosseract

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

type Config struct {
	TessdataDir string
	PSM         int
}

// Engine serializes calls; a gosseract client is not safe for concurrent use.
type Engine struct {
	cfg Config
	mu  sync.Mutex
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string { return "gosseract" }

func (e *Engine) Recognize(ctx context.Context, image []byte, lang string) (string, float64, error) {
	if len(image) == 0 {
		return "", 0, nil
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	client := gosseract.NewClient()
	defer client.Close()

	if e.cfg.TessdataDir != "" {
		client.TessdataPrefix = e.cfg.TessdataDir
	}
	if err := client.SetLanguage(lang); err != nil {
		return "", 0, fmt.Errorf("gosseract language: %w", err)
	}
	if e.cfg.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return "", 0, fmt.Errorf("gosseract psm: %w", err)
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		// undecodable images are blank pages, not failures
		return "", 0, nil
	}
	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("gosseract text: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return text, 0, nil
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return text, sum / float64(len(boxes)), nil
}
