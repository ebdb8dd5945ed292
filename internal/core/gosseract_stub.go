//go:build !gosseract

package core

import (
	"errors"

	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/ocr"
)

// ErrGosseractUnavailable is returned when OCR_ENGINE=gosseract but the
// binary was built without cgo tesseract bindings (-tags gosseract).
var ErrGosseractUnavailable = errors.New("built without gosseract support; rebuild with -tags gosseract")

func newGosseract(common.OCRConfig) (ocr.Engine, error) {
	return nil, ErrGosseractUnavailable
}
