package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/core"
	"github.com/joseph-ayodele/tariff-catalog/internal/ocr"
	"github.com/joseph-ayodele/tariff-catalog/internal/parser"
)

var parseOpts struct {
	text string
	page int
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Run the structured parser on recognized text",
	Long:  `Parse sends page text (from a file, or stdin with --text -) to the language model and prints the candidates and the catalog they merge into.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			raw []byte
			err error
		)
		if parseOpts.text == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(parseOpts.text)
		}
		if err != nil {
			return err
		}

		extractor, err := core.NewExtractor(cfg.LLM, logger)
		if err != nil {
			return err
		}
		p := parser.New(parser.Config{
			MaxAttempts:  cfg.LLM.MaxAttempts,
			RetryBackoff: cfg.LLM.RetryBackoff,
		}, extractor, logger)

		res, err := p.Parse(cmd.Context(), ocr.PageText{Index: parseOpts.page, Text: ocr.Normalize(string(raw))})
		if err != nil {
			return err
		}
		merged := catalog.NewMerger(catalog.Weights{
			Price:       cfg.Merge.PriceWeight,
			Description: cfg.Merge.DescriptionWeight,
		}).Merge(res.Candidates)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"attempts":   res.Attempts,
			"dropped":    res.Dropped + merged.Dropped,
			"candidates": res.Candidates,
			"catalog":    merged.Catalog,
			"conflicts":  merged.Conflicts,
		})
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseOpts.text, "text", "", "text file to parse, - for stdin (required)")
	parseCmd.Flags().IntVar(&parseOpts.page, "page", 1, "page index recorded on candidates")
	_ = parseCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(parseCmd)
}
