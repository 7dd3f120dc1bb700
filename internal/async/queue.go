// Package async decouples extraction submission from execution: callers
// enqueue a run and a bounded worker pool drains it through the pipeline.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/guirra-byte/contracts-extractor/internal/pipeline"
)

// Job is one queued extraction request. The run row already exists when a
// job is enqueued, so callers can hand out the id immediately.
type Job struct {
	RunID       uuid.UUID
	SourcePath  string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Runner executes one queued run. *pipeline.Processor is the production
// implementation.
type Runner interface {
	RunQueued(ctx context.Context, runID uuid.UUID, sourcePath string) (*pipeline.RunResult, error)
}

// ErrQueueFull is returned instead of blocking the submitter; the HTTP
// layer maps it to backpressure.
var ErrQueueFull = errors.New("extraction queue full")

// ErrQueueClosed rejects submissions during shutdown.
var ErrQueueClosed = errors.New("extraction queue shutting down")
