package async

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/utils"
)

// TaskExtract is the asynq task type for catalog extraction.
const TaskExtract = "catalog:extract"

type extractPayload struct {
	JobID      string `json:"job_id"`
	ProviderID string `json:"provider_id"`
	Path       string `json:"path"`
	Force      bool   `json:"force,omitempty"`
}

// NewExtractTask encodes a job as an asynq task. The task id is derived
// from provider and path so the same file is queued at most once.
func NewExtractTask(job Job) (*asynq.Task, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	b, err := json.Marshal(extractPayload{JobID: job.ID, ProviderID: job.ProviderID, Path: job.Path, Force: job.Force})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExtract, b, asynq.TaskID(taskID(job))), nil
}

func taskID(job Job) string {
	return "extract:" + utils.SHA256Hex([]byte(job.ProviderID + "\x00" + job.Path))[:32]
}

// DecodeExtractTask reads a job back from a task payload.
func DecodeExtractTask(t *asynq.Task) (Job, error) {
	var p extractPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return Job{}, fmt.Errorf("decode %s payload: %w", TaskExtract, err)
	}
	if p.ProviderID == "" || p.Path == "" {
		return Job{}, fmt.Errorf("%s payload needs provider_id and path: %w", TaskExtract, common.ErrInvalidInput)
	}
	return Job{ID: p.JobID, ProviderID: p.ProviderID, Path: p.Path, Force: p.Force}, nil
}

type AsynqConfig struct {
	RedisURL    string
	Queue       string        // default "catalog"
	Concurrency int           // worker only, default 2
	MaxRetry    int           // default 3
	Timeout     time.Duration // per task, default 30m
}

func (c *AsynqConfig) defaults() {
	if c.Queue == "" {
		c.Queue = "catalog"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.MaxRetry < 0 {
		c.MaxRetry = 0
	} else if c.MaxRetry == 0 {
		c.MaxRetry = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Minute
	}
}

// AsynqQueue enqueues jobs in Redis for a Worker to pick up.
type AsynqQueue struct {
	cfg       AsynqConfig
	client    *asynq.Client
	inspector *asynq.Inspector
	logger    *slog.Logger
}

func NewAsynqQueue(cfg AsynqConfig, logger *slog.Logger) (*AsynqQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &AsynqQueue{
		cfg:       cfg,
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		logger:    logger,
	}, nil
}

// Enqueue submits the job. A job already waiting for the same file is not
// an error.
func (q *AsynqQueue) Enqueue(ctx context.Context, job Job) error {
	task, err := NewExtractTask(job)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.cfg.Queue),
		asynq.MaxRetry(q.cfg.MaxRetry),
		asynq.Timeout(q.cfg.Timeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		q.logger.Info("job already queued", "provider_id", job.ProviderID, "path", job.Path)
		return nil
	}
	if err != nil {
		q.logger.Error("enqueue failed", "provider_id", job.ProviderID, "error", err)
		return fmt.Errorf("enqueue %s: %w", TaskExtract, err)
	}
	q.logger.Info("job enqueued", "task_id", info.ID, "queue", info.Queue, "provider_id", job.ProviderID, "path", job.Path)
	return nil
}

// Ping checks that Redis answers.
func (q *AsynqQueue) Ping(context.Context) error {
	_, err := q.inspector.Queues()
	return err
}

// Pending reports how many extraction tasks wait in the queue.
func (q *AsynqQueue) Pending() (int, error) {
	info, err := q.inspector.GetQueueInfo(q.cfg.Queue)
	if err != nil {
		return 0, err
	}
	return info.Pending, nil
}

func (q *AsynqQueue) Shutdown(context.Context) {
	if err := q.client.Close(); err != nil {
		q.logger.Warn("failed to close asynq client", "error", err)
	}
	if err := q.inspector.Close(); err != nil {
		q.logger.Warn("failed to close asynq inspector", "error", err)
	}
}

// Worker consumes extraction tasks from Redis.
type Worker struct {
	cfg    AsynqConfig
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

func NewWorker(cfg AsynqConfig, proc JobProcessor, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			// 10s, 20s, 40s ... capped at 5m
			return min(time.Duration(10<<min(n, 5))*time.Second, 5*time.Minute)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", "type", task.Type(), "payload", string(task.Payload()), "error", err)
		}),
		Logger:   slogAdapter{logger: logger.With("component", "asynq")},
		LogLevel: asynq.WarnLevel,
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskExtract, ExtractHandler(proc, logger))
	return &Worker{cfg: cfg, server: server, mux: mux, logger: logger}, nil
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	w.logger.Info("starting queue worker", "queue", w.cfg.Queue, "concurrency", w.cfg.Concurrency)
	return w.server.Start(w.mux)
}

// Shutdown waits for in-flight tasks up to asynq's shutdown timeout.
func (w *Worker) Shutdown() {
	w.logger.Info("stopping queue worker")
	w.server.Shutdown()
}

// ExtractHandler processes catalog:extract tasks. Bad payloads and
// malformed documents are not retried.
func ExtractHandler(proc JobProcessor, logger *slog.Logger) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		job, err := DecodeExtractTask(t)
		if err != nil {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		if id, ok := asynq.GetTaskID(ctx); ok {
			logger.Debug("task received", "task_id", id, "job_id", job.ID)
		}
		out, err := proc.Process(ctx, job)
		if err != nil {
			if errors.Is(err, common.ErrMalformedDocument) || errors.Is(err, common.ErrInvalidInput) || errors.Is(err, common.ErrValidation) {
				return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
			}
			return err
		}
		logger.Info("task done", "job_id", job.ID, "provider_id", job.ProviderID, "skipped", out.Skipped)
		return nil
	})
}

// slogAdapter satisfies asynq.Logger.
type slogAdapter struct{ logger *slog.Logger }

func (a slogAdapter) Debug(args ...any) { a.logger.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...any)  { a.logger.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...any)  { a.logger.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...any) { a.logger.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...any) {
	a.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
