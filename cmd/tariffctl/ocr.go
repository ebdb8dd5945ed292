package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tariff-catalog/internal/core"
	"github.com/joseph-ayodele/tariff-catalog/internal/ingest"
	"github.com/joseph-ayodele/tariff-catalog/internal/ocr"
	"github.com/joseph-ayodele/tariff-catalog/internal/raster"
	"github.com/joseph-ayodele/tariff-catalog/internal/utils"
)

var ocrOpts struct {
	pdf  string
	page int
}

var ocrCmd = &cobra.Command{
	Use:   "ocr",
	Short: "Print the recognized text of each page",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		data, err := ingest.ReadPDF(ocrOpts.pdf)
		if err != nil {
			return err
		}
		runner := utils.NewExecRunner(logger)
		rz := raster.New(raster.Config{
			Pdftoppm: cfg.Raster.Pdftoppm,
			Scale:    cfg.Raster.Scale,
			MaxPages: cfg.Raster.MaxPages,
		}, runner, raster.PDFCPUInspector{}, logger)
		engine, closeEngine, err := core.NewOCREngine(ctx, cfg.OCR, runner)
		if err != nil {
			return err
		}
		if closeEngine != nil {
			defer closeEngine()
		}
		rec := ocr.NewRecognizer(ocr.Config{
			Lang:             cfg.OCR.Lang,
			FallbackLangs:    cfg.OCR.FallbackLangs,
			AcceptConfidence: cfg.OCR.AcceptConfidence,
			MinTextLength:    cfg.Pipeline.MinTextLength,
		}, engine, logger)

		pages, err := rz.Rasterize(ctx, data)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, p := range pages {
			if ocrOpts.page > 0 && p.Index != ocrOpts.page {
				continue
			}
			pt := rec.Recognize(ctx, p)
			fmt.Fprintf(w, "=== page %d  engine=%s lang=%s confidence=%.1f attempts=%d ===\n",
				pt.Index, pt.Engine, pt.Language, pt.Confidence, pt.Attempts)
			if pt.Err != nil {
				fmt.Fprintf(w, "error: %v\n\n", pt.Err)
				continue
			}
			fmt.Fprintf(w, "%s\n\n", pt.Text)
		}
		return nil
	},
}

func init() {
	ocrCmd.Flags().StringVar(&ocrOpts.pdf, "pdf", "", "path to the PDF (required)")
	ocrCmd.Flags().IntVar(&ocrOpts.page, "page", 0, "only this 1-based page (default all)")
	_ = ocrCmd.MarkFlagRequired("pdf")
	rootCmd.AddCommand(ocrCmd)
}
