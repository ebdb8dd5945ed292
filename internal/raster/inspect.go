package raster

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Inspector validates a PDF and reports its page count.
type Inspector interface {
	PageCount(pdf []byte) (int, error)
}

// PDFCPUInspector parses the document with pdfcpu in relaxed mode.
type PDFCPUInspector struct{}

var disableConfigDir sync.Once

func (PDFCPUInspector) PageCount(pdf []byte) (n int, err error) {
	// keep pdfcpu from creating a config dir under $HOME
	disableConfigDir.Do(api.DisableConfigDir)

	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}
