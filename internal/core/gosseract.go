//go:build gosseract

package core

import (
	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/ocr"
	"github.com/joseph-ayodele/tariff-catalog/internal/ocr/gosseract"
)

func newGosseract(cfg common.OCRConfig) (ocr.Engine, error) {
	return gosseract.New(gosseract.Config{TessdataDir: cfg.TessdataDir, PSM: cfg.PSM}), nil
}
