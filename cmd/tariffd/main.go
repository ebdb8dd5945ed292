package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/tariff-catalog/internal/async"
	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/core"
	"github.com/joseph-ayodele/tariff-catalog/internal/ingest"
	"github.com/joseph-ayodele/tariff-catalog/internal/repository"
	"github.com/joseph-ayodele/tariff-catalog/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tariffd.exit", "error", err)
		os.Exit(1)
	}
	logger.Info("tariffd.stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	for _, validate := range []func() error{cfg.Validate, cfg.ValidateDatabase, cfg.ValidateQueue} {
		if err := validate(); err != nil {
			return err
		}
	}

	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	repo := repository.NewCatalogRepository(db, logger)

	stack, err := core.BuildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Warn("tariffd.stack_close_failed", "error", err)
		}
	}()
	proc := core.NewProcessor(logger, stack.Controller, repo, cfg.Ingest.ExportDir)

	qcfg := async.AsynqConfig{
		RedisURL:    cfg.Queue.RedisURL,
		Queue:       cfg.Queue.Name,
		Concurrency: cfg.Queue.Workers,
		MaxRetry:    cfg.Queue.MaxRetry,
		Timeout:     cfg.Queue.JobTimeout,
	}
	queue, err := async.NewAsynqQueue(qcfg, logger)
	if err != nil {
		return err
	}
	defer queue.Shutdown(context.Background())

	worker, err := async.NewWorker(qcfg, proc, logger)
	if err != nil {
		return err
	}
	if err := worker.Start(); err != nil {
		return err
	}
	defer worker.Shutdown()

	srv := server.New(server.Config{Addr: cfg.Server.GRPCAddr}, map[string]server.Check{
		"database": func(ctx context.Context) error { return db.HealthCheck(ctx, 0) },
		"queue":    queue.Ping,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	if len(cfg.Ingest.WatchDirs) > 0 {
		g.Go(func() error { return watch(gctx, cfg, queue, logger) })
	}
	logger.Info("tariffd.started",
		"grpc_addr", cfg.Server.GRPCAddr,
		"queue", cfg.Queue.Name,
		"workers", cfg.Queue.Workers,
		"watch_dirs", cfg.Ingest.WatchDirs,
	)
	return g.Wait()
}

// watch turns new PDFs under the watched directories into queued jobs.
func watch(ctx context.Context, cfg *common.Config, queue *async.AsynqQueue, logger *slog.Logger) error {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Ingest.WatchDirs,
		InitialScan: true,
		SkipHidden:  cfg.Ingest.SkipHidden,
		Debounce:    cfg.Ingest.WatchDebounce,
	}, logger)
	if err != nil {
		return err
	}
	for paths != nil || errs != nil {
		select {
		case p, ok := <-paths:
			if !ok {
				paths = nil
				continue
			}
			job := core.Job{ProviderID: ingest.ProviderID(cfg.Ingest.ProviderPrefix, p), Path: p}
			if err := queue.Enqueue(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watch.enqueue_failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "error", err)
		}
	}
	return nil
}
