// Package raster turns PDF bytes into ordered page images for recognition.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/tariff-catalog/internal/utils"
)

// PointsPerInch is the native PDF resolution; Scale multiplies it.
const PointsPerInch = 72.0

// DefaultScale renders typical tariff-table text well above the minimum
// height tesseract reads reliably.
const DefaultScale = 3.0

// PageImage is one rendered page. Data holds the PNG-encoded pixels.
type PageImage struct {
	Index  int
	Data   []byte
	Scale  float64
	Width  int
	Height int
}

type Config struct {
	Pdftoppm string  // binary name or absolute path; if empty -> "pdftoppm"
	Scale    float64 // multiple of 72 DPI, default 3
	MaxPages int     // 0 = no limit
	TempDir  string  // parent for per-run temp dirs; "" = os default
}

type Rasterizer struct {
	cfg       Config
	runner    utils.Runner
	inspector Inspector
	logger    *slog.Logger
}

func New(cfg Config, runner utils.Runner, inspector Inspector, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Scale <= 0 {
		cfg.Scale = DefaultScale
	}
	if runner == nil {
		runner = utils.NewExecRunner(logger)
	}
	if inspector == nil {
		inspector = PDFCPUInspector{}
	}
	return &Rasterizer{cfg: cfg, runner: runner, inspector: inspector, logger: logger}
}

// DPI is the pdftoppm resolution for the configured scale.
func (r *Rasterizer) DPI() float64 { return PointsPerInch * r.cfg.Scale }

// Rasterize renders every page in order. A document that cannot be parsed
// returns a *MalformedDocumentError; a zero-page document returns no pages
// and no error.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte) ([]PageImage, error) {
	start := time.Now()
	if len(bytes.TrimSpace(pdf)) == 0 {
		return nil, malformed("empty byte stream", nil)
	}

	pages, err := r.inspector.PageCount(pdf)
	if err != nil {
		r.logger.Error("raster.inspect.failed", "bytes", len(pdf), "error", err)
		return nil, malformed("cannot parse pdf", err)
	}
	if pages == 0 {
		r.logger.Warn("raster.inspect.zero_pages", "bytes", len(pdf))
		return []PageImage{}, nil
	}
	if r.cfg.MaxPages > 0 && pages > r.cfg.MaxPages {
		r.logger.Warn("raster.max_pages_applied", "pages", pages, "max_pages", r.cfg.MaxPages)
		pages = r.cfg.MaxPages
	}

	tmpDir, err := os.MkdirTemp(r.cfg.TempDir, "tc-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("raster.cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 216 -png -l <pages> <in.pdf> <tmp/page>
	args := []string{
		"-r", strconv.FormatFloat(r.DPI(), 'f', -1, 64),
		"-png",
		"-l", strconv.Itoa(pages),
		in, prefix,
	}
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("pdftoppm unavailable: %w", err)
		}
		return nil, malformed("render failed: "+utils.Truncate(strings.TrimSpace(string(errb)), 512), err)
	}

	images, err := r.collect(prefix)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, malformed("renderer produced no pages", nil)
	}

	r.logger.Info("raster.render.ok",
		"pages", len(images),
		"dpi", r.DPI(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return images, nil
}

// collect reads prefix-N.png files (N may be zero padded) ordered by N.
func (r *Rasterizer) collect(prefix string) ([]PageImage, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("glob pages: %w", err)
	}

	images := make([]PageImage, 0, len(matches))
	for _, path := range matches {
		base := strings.TrimSuffix(filepath.Base(path), ".png")
		idx, err := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
		if err != nil {
			r.logger.Warn("raster.unexpected_file", "path", path)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", idx, err)
		}
		img := PageImage{Index: idx, Data: data, Scale: r.cfg.Scale}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			img.Width, img.Height = cfg.Width, cfg.Height
		}
		images = append(images, img)
	}
	slices.SortFunc(images, func(a, b PageImage) int { return a.Index - b.Index })
	return images, nil
}
