package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tariff-catalog/internal/async"
	"github.com/joseph-ayodele/tariff-catalog/internal/core"
	"github.com/joseph-ayodele/tariff-catalog/internal/ingest"
)

var enqueueOpts struct {
	provider string
	pdf      string
	force    bool
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a PDF for extraction by tariffd",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.ValidateQueue(); err != nil {
			return err
		}
		// tariffd reads the file itself; check it now and pass an absolute path
		abs, err := filepath.Abs(enqueueOpts.pdf)
		if err != nil {
			return err
		}
		if _, err := ingest.ReadPDF(abs); err != nil {
			return err
		}

		q, err := async.NewAsynqQueue(async.AsynqConfig{
			RedisURL: cfg.Queue.RedisURL,
			Queue:    cfg.Queue.Name,
			MaxRetry: cfg.Queue.MaxRetry,
			Timeout:  cfg.Queue.JobTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer q.Shutdown(ctx)

		provider := enqueueOpts.provider
		if provider == "" {
			provider = ingest.ProviderID(cfg.Ingest.ProviderPrefix, abs)
		}
		if err := q.Enqueue(ctx, core.Job{ProviderID: provider, Path: abs, Force: enqueueOpts.force}); err != nil {
			return err
		}
		if n, err := q.Pending(); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s for %s (%d pending)\n", abs, provider, n)
		}
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueOpts.provider, "provider", "", "provider id (default derived from the file name)")
	enqueueCmd.Flags().StringVar(&enqueueOpts.pdf, "pdf", "", "path to the PDF (required)")
	enqueueCmd.Flags().BoolVar(&enqueueOpts.force, "force", false, "extract even if this content was already extracted")
	_ = enqueueCmd.MarkFlagRequired("pdf")
	rootCmd.AddCommand(enqueueCmd)
}
