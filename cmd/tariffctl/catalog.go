package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/export"
	"github.com/joseph-ayodele/tariff-catalog/internal/utils"
)

var catalogOpts struct {
	provider string
	xlsx     string
	pdf      string
	yaml     bool
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Show or export a provider's stored catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, repo, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		svc := export.NewService(repo, logger)
		if catalogOpts.xlsx != "" {
			b, err := svc.ExportCatalogXLSX(ctx, catalogOpts.provider)
			if err != nil {
				return err
			}
			if err := os.WriteFile(catalogOpts.xlsx, b, 0o644); err != nil {
				return err
			}
		}
		if catalogOpts.pdf != "" {
			b, err := svc.ExportCatalogPDF(ctx, catalogOpts.provider)
			if err != nil {
				return err
			}
			if err := os.WriteFile(catalogOpts.pdf, b, 0o644); err != nil {
				return err
			}
		}
		if catalogOpts.xlsx != "" || catalogOpts.pdf != "" {
			return nil
		}

		procs, err := repo.GetCatalog(ctx, catalogOpts.provider)
		if err != nil {
			return err
		}
		if catalogOpts.yaml {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			cands := make([]catalog.CandidateProcedure, 0, len(procs))
			for _, p := range procs {
				cands = append(cands, p.Candidate())
			}
			return enc.Encode(cands)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CODE\tVALUE\tPAGE\tDESCRIPTION")
		for _, p := range procs {
			value := "-"
			if p.Value != nil {
				value = p.Value.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.Code, value, p.Page, utils.Truncate(p.Description, 80))
		}
		return tw.Flush()
	},
}

var runsOpts struct {
	provider string
	limit    int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List a provider's extraction runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, repo, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := repo.ListRuns(ctx, runsOpts.provider, runsOpts.limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tRESULT\tPAGES\tPROCEDURES\tCONFLICTS\tSOURCE")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, utils.StrOrEmpty(r.RunStatus),
				r.ContributingPages, r.TotalPages, r.Procedures, r.Conflicts, utils.StrOrEmpty(r.SourcePath))
		}
		return tw.Flush()
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogOpts.provider, "provider", "", "provider id (required)")
	catalogCmd.Flags().StringVar(&catalogOpts.xlsx, "xlsx", "", "write the catalog as XLSX to this path")
	catalogCmd.Flags().StringVar(&catalogOpts.pdf, "pdf", "", "write the catalog as PDF to this path")
	catalogCmd.Flags().BoolVar(&catalogOpts.yaml, "yaml", false, "print YAML instead of a table")
	_ = catalogCmd.MarkFlagRequired("provider")

	runsCmd.Flags().StringVar(&runsOpts.provider, "provider", "", "provider id (required)")
	runsCmd.Flags().IntVar(&runsOpts.limit, "limit", 20, "maximum runs to list")
	_ = runsCmd.MarkFlagRequired("provider")

	rootCmd.AddCommand(catalogCmd, runsCmd)
}
