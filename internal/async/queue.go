package async

import (
	"context"

	"github.com/joseph-ayodele/tariff-catalog/internal/core"
)

// Job is the unit both queues carry.
type Job = core.Job

// JobProcessor is satisfied by *core.Processor.
type JobProcessor interface {
	Process(ctx context.Context, job core.Job) (core.Outcome, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
