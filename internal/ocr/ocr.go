// Package ocr recognizes text on rendered pages. A Recognizer tries one or
// more language hypotheses on an Engine and keeps the most confident one.
package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/tariff-catalog/internal/raster"
)

// MinTextLength is the shortest recognized text worth sending to the parser.
const MinTextLength = 20

// PageText is the recognition result for one page. Confidence is in
// [0,100] and is 0 when Text is empty.
type PageText struct {
	Index      int
	Text       string
	Confidence float64
	Language   string
	Engine     string
	Attempts   int
	// Err is set when no hypothesis could run at all (engine failures or
	// cancellation). The page is still usable as an empty result.
	Err error
}

// Engine runs a single recognition hypothesis.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, lang string) (text string, confidence float64, err error)
}

type Config struct {
	Lang             string   // primary hypothesis, default "por"
	FallbackLangs    []string // tried when the primary result is weak
	AcceptConfidence float64  // primary results at or above this skip fallbacks, default 85
	MinTextLength    int      // default MinTextLength
}

type Recognizer struct {
	cfg    Config
	engine Engine
	logger *slog.Logger
}

func NewRecognizer(cfg Config, engine Engine, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Lang == "" {
		cfg.Lang = "por"
	}
	if cfg.AcceptConfidence <= 0 {
		cfg.AcceptConfidence = 85
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = MinTextLength
	}
	return &Recognizer{cfg: cfg, engine: engine, logger: logger}
}

// Hypotheses returns the languages in the order they are tried.
func (r *Recognizer) Hypotheses() []string {
	out := []string{r.cfg.Lang}
	for _, l := range r.cfg.FallbackLangs {
		if l != "" && l != r.cfg.Lang {
			out = append(out, l)
		}
	}
	return out
}

// Recognize never fails: corrupt or blank images yield empty text with
// zero confidence. Among hypotheses the highest confidence wins; ties keep
// the earlier one.
func (r *Recognizer) Recognize(ctx context.Context, img raster.PageImage) PageText {
	start := time.Now()
	best := PageText{Index: img.Index, Engine: r.engine.Name()}
	var lastErr error
	succeeded := 0

	for i, lang := range r.Hypotheses() {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		best.Attempts++

		text, conf, err := r.engine.Recognize(ctx, img.Data, lang)
		if err != nil {
			lastErr = err
			r.logger.Warn("ocr.recognize.engine_error",
				"page", img.Index, "lang", lang, "engine", r.engine.Name(), "error", err)
			if ctx.Err() != nil {
				lastErr = ctx.Err()
				break
			}
			continue
		}
		succeeded++

		text = Normalize(text)
		conf = clampConfidence(conf)
		if text == "" {
			conf = 0
		}
		if succeeded == 1 || conf > best.Confidence {
			best.Text, best.Confidence, best.Language = text, conf, lang
		}

		if i == 0 && conf >= r.cfg.AcceptConfidence && Sufficient(text, r.cfg.MinTextLength) {
			break
		}
		if i == 0 && len(r.Hypotheses()) > 1 {
			r.logger.Debug("ocr.recognize.fallback",
				"page", img.Index, "primary_lang", lang, "confidence", conf, "chars", utf8.RuneCountInString(text))
		}
	}

	if succeeded == 0 {
		best.Err = lastErr
	}

	r.logger.Info("ocr.recognize.done",
		"page", img.Index,
		"lang", best.Language,
		"confidence", best.Confidence,
		"chars", utf8.RuneCountInString(best.Text),
		"attempts", best.Attempts,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return best
}

// Sufficient reports whether text is long enough to be worth parsing.
func Sufficient(text string, min int) bool {
	if min <= 0 {
		min = MinTextLength
	}
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= min
}

func clampConfidence(c float64) float64 {
	switch {
	case c != c, c < 0: // NaN or negative
		return 0
	case c > 100:
		return 100
	}
	return c
}
