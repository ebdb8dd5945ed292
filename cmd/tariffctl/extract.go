package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tariff-catalog/internal/core"
	"github.com/joseph-ayodele/tariff-catalog/internal/export"
	"github.com/joseph-ayodele/tariff-catalog/internal/pipeline"
	"github.com/joseph-ayodele/tariff-catalog/internal/repository"
)

var extractOpts struct {
	provider string
	pdf      string
	out      string
	outXLSX  string
	outPDF   string
	format   string
	save     bool
	force    bool
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the procedure catalog from one PDF",
	Long: `Extract runs the whole pipeline on one PDF. The catalog is written as JSON
(code -> {description, value}) to --out or stdout; the run report goes to stderr.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(); err != nil {
			return err
		}
		stack, err := core.BuildStack(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		var repo repository.CatalogRepository
		if extractOpts.save {
			db, r, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			repo = r
		}

		proc := core.NewProcessor(logger, stack.Controller, repo, "")
		out, err := proc.Process(ctx, core.Job{
			ProviderID: extractOpts.provider,
			Path:       extractOpts.pdf,
			Force:      extractOpts.force,
		})
		if err != nil {
			return err
		}
		if out.Skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "already extracted as run %s; use --force to run again\n", out.RunID)
			return nil
		}
		res := out.Result

		if err := writeCatalog(cmd.OutOrStdout(), extractOpts.out, res); err != nil {
			return err
		}
		if err := writeExports(extractOpts.provider, res, extractOpts.outXLSX, extractOpts.outPDF); err != nil {
			return err
		}
		return pipeline.WriteReport(cmd.ErrOrStderr(), res.Report, extractOpts.format)
	},
}

func writeCatalog(stdout io.Writer, path string, res pipeline.Result) error {
	b, err := json.MarshalIndent(res.Catalog, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "" || path == "-" {
		_, err = stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeExports(providerID string, res pipeline.Result, xlsxPath, pdfPath string) error {
	procs := res.Catalog.Candidates()
	if xlsxPath != "" {
		b, err := export.CatalogXLSX(providerID, procs, &res.Report)
		if err != nil {
			return err
		}
		if err := os.WriteFile(xlsxPath, b, 0o644); err != nil {
			return err
		}
		logger.Info("export written", "path", xlsxPath, "bytes", len(b))
	}
	if pdfPath != "" {
		b, err := export.CatalogPDF(providerID, procs, &res.Report)
		if err != nil {
			return err
		}
		if err := os.WriteFile(pdfPath, b, 0o644); err != nil {
			return err
		}
		logger.Info("export written", "path", pdfPath, "bytes", len(b))
	}
	return nil
}

func init() {
	f := extractCmd.Flags()
	f.StringVar(&extractOpts.provider, "provider", "", "provider id (required)")
	f.StringVar(&extractOpts.pdf, "pdf", "", "path to the fee-table PDF (required)")
	f.StringVarP(&extractOpts.out, "out", "o", "", "catalog JSON output path (default stdout)")
	f.StringVar(&extractOpts.outXLSX, "out-xlsx", "", "also write the catalog as an XLSX workbook")
	f.StringVar(&extractOpts.outPDF, "out-pdf", "", "also write the catalog as a PDF table")
	f.StringVar(&extractOpts.format, "format", pipeline.FormatText, "report format: json|yaml|text")
	f.BoolVar(&extractOpts.save, "save", false, "store the run and catalog in the database")
	f.BoolVar(&extractOpts.force, "force", false, "with --save, run even if this file was already extracted")
	_ = extractCmd.MarkFlagRequired("provider")
	_ = extractCmd.MarkFlagRequired("pdf")
	rootCmd.AddCommand(extractCmd)
}
