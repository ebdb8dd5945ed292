package main

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tariff-catalog/internal/async"
	"github.com/joseph-ayodele/tariff-catalog/internal/core"
	"github.com/joseph-ayodele/tariff-catalog/internal/ingest"
	"github.com/joseph-ayodele/tariff-catalog/internal/repository"
)

var batchOpts struct {
	dir        string
	prefix     string
	skipHidden bool
	workers    int
	save       bool
	exportDir  string
	force      bool
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract every PDF under a directory",
	Long: `Batch scans --dir for PDFs, skips files with identical content and runs each
through the pipeline on an in-process worker pool. The provider id of each file
is derived from its name, prefixed with --provider-prefix.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(); err != nil {
			return err
		}
		files, rejected, stats, err := ingest.ScanDirectory(ctx, batchOpts.dir, batchOpts.skipHidden)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, r := range rejected {
			fmt.Fprintf(w, "%s %s: %s\n", failStyle.Render("REJECTED"), r.Path, r.Err)
		}
		if len(files) == 0 {
			fmt.Fprintf(w, "no PDFs found under %s\n", batchOpts.dir)
			return nil
		}

		stack, err := core.BuildStack(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		var repo repository.CatalogRepository
		if batchOpts.save {
			db, r, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			repo = r
		}
		proc := core.NewProcessor(logger, stack.Controller, repo, batchOpts.exportDir)

		var (
			mu     sync.Mutex
			failed int
		)
		workers := batchOpts.workers
		if workers <= 0 {
			workers = cfg.Queue.Workers
		}
		q := async.NewProcessorQueue(proc, logger,
			async.WithWorkers(workers),
			async.WithQueueSize(cfg.Queue.Size),
			async.WithProcessTimeout(cfg.Queue.JobTimeout),
			async.WithOnDone(func(job async.Job, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					fmt.Fprintf(w, "%s %s (%s): %v\n", failStyle.Render("FAILED"), job.Path, job.ProviderID, err)
					return
				}
				fmt.Fprintf(w, "%s %s %s\n", okStyle.Render("DONE"), job.Path, dimStyle.Render(job.ProviderID))
			}),
		)
		for _, f := range files {
			job := core.Job{
				ProviderID: ingest.ProviderID(batchOpts.prefix, f.Path),
				Path:       f.Path,
				Force:      batchOpts.force,
			}
			if err := q.Enqueue(ctx, job); err != nil {
				q.Shutdown(ctx)
				return err
			}
		}
		q.Shutdown(ctx)

		fmt.Fprintf(w, "\nscanned %d, pdfs %d, duplicates %d, rejected %d, processed %d, failed %d\n",
			stats.Scanned, stats.Matched, stats.Deduplicated, stats.Rejected, len(files)-failed, failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(files))
		}
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchOpts.dir, "dir", "", "directory to scan (required)")
	f.StringVar(&batchOpts.prefix, "provider-prefix", "", "prefix for provider ids derived from file names")
	f.BoolVar(&batchOpts.skipHidden, "skip-hidden", true, "skip hidden files and directories")
	f.IntVar(&batchOpts.workers, "workers", 0, "parallel documents (default QUEUE_WORKERS)")
	f.BoolVar(&batchOpts.save, "save", false, "store runs and catalogs in the database")
	f.StringVar(&batchOpts.exportDir, "export-dir", "", "write <provider>.xlsx and <provider>.pdf here")
	f.BoolVar(&batchOpts.force, "force", false, "with --save, rerun files already extracted")
	_ = batchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(batchCmd)
}
