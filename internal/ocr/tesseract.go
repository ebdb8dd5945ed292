package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/tariff-catalog/internal/utils"
)

type TesseractConfig struct {
	Binary      string // default "tesseract"
	TessdataDir string
	PSM         int // 6 suits a uniform block of table rows
	OEM         int // 0 leaves the engine default
	TempDir     string
}

// Tesseract drives the tesseract CLI in TSV mode so text and word
// confidences come from a single invocation.
type Tesseract struct {
	cfg    TesseractConfig
	runner utils.Runner
}

func NewTesseract(cfg TesseractConfig, runner utils.Runner) *Tesseract {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	return &Tesseract{cfg: cfg, runner: runner}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Recognize(ctx context.Context, image []byte, lang string) (string, float64, error) {
	if len(image) == 0 {
		return "", 0, nil
	}
	dir, err := os.MkdirTemp(t.cfg.TempDir, "ocr-*")
	if err != nil {
		return "", 0, fmt.Errorf("tesseract temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "page.png")
	if err := os.WriteFile(in, image, 0o600); err != nil {
		return "", 0, fmt.Errorf("tesseract write image: %w", err)
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, t.args(in, lang)...)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", 0, fmt.Errorf("tesseract: %w", err)
		}
		// tesseract exits non-zero on images it cannot decode; treat as blank
		if isUnreadableImage(errb) {
			return "", 0, nil
		}
		return "", 0, fmt.Errorf("tesseract: %w: %s", err, utils.Truncate(string(errb), 512))
	}
	text, conf := ParseTSV(string(out))
	return text, conf, nil
}

func (t *Tesseract) args(in, lang string) []string {
	args := []string{in, "stdout", "-l", lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return append(args, "tsv")
}

func isUnreadableImage(stderr []byte) bool {
	s := strings.ToLower(string(stderr))
	return strings.Contains(s, "image file") && strings.Contains(s, "cannot be read") ||
		strings.Contains(s, "error in pixread") ||
		strings.Contains(s, "unsupported image format")
}

// TSV columns: level page_num block_num par_num line_num word_num left top width height conf text
const (
	tsvLevel = 0
	tsvBlock = 2
	tsvPar   = 3
	tsvLine  = 4
	tsvConf  = 10
	tsvText  = 11
	tsvCols  = 12

	levelWord = 5
)

// ParseTSV rebuilds line-oriented text from tesseract TSV output and returns
// the mean word confidence (0..100). Words with conf -1 are layout rows.
func ParseTSV(tsv string) (string, float64) {
	var (
		b        strings.Builder
		lineKey  string
		lineBuf  []string
		sum      float64
		n        int
		lastPara string
	)
	flush := func() {
		if len(lineBuf) > 0 {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(strings.Join(lineBuf, " "))
			lineBuf = lineBuf[:0]
		}
	}

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 && strings.HasPrefix(ln, "level") {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < tsvCols {
			continue
		}
		if lvl, err := strconv.Atoi(cols[tsvLevel]); err != nil || lvl != levelWord {
			continue
		}
		word := strings.TrimSpace(strings.Join(cols[tsvText:], "\t"))
		conf, err := strconv.ParseFloat(cols[tsvConf], 64)
		if err != nil || conf < 0 || word == "" {
			continue
		}

		para := cols[tsvBlock] + "/" + cols[tsvPar]
		key := para + "/" + cols[tsvLine]
		if key != lineKey {
			flush()
			if lastPara != "" && para != lastPara {
				b.WriteByte('\n')
			}
			lineKey, lastPara = key, para
		}
		lineBuf = append(lineBuf, word)
		sum += conf
		n++
	}
	flush()

	if n == 0 {
		return "", 0
	}
	return b.String(), sum / float64(n)
}
