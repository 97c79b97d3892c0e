package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/aura-events/regreview/internal/dashboard"
	"github.com/aura-events/regreview/internal/exports"
	"github.com/aura-events/regreview/internal/metrics"
	"github.com/aura-events/regreview/internal/models"
	"github.com/aura-events/regreview/internal/registrations"
	"github.com/aura-events/regreview/pkg/queue"
	"github.com/aura-events/regreview/pkg/storage"
)

// RecordLoader fetches and normalizes every registration.
type RecordLoader interface {
	Load(ctx context.Context) ([]models.Registration, error)
}

// Uploader stores finished export documents.
type Uploader interface {
	UploadExport(ctx context.Context, key, fileName string, body io.Reader, contentLength int64) error
}

// JobQueue is the subset of the Redis queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (dead bool, err error)
	DeadLetter(ctx context.Context, job *queue.Job) error
	SetStatus(ctx context.Context, st queue.ExportStatus) error
}

// permanentError marks a job failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// IsPermanent reports whether err came from a job that can never succeed.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ExportProcessor processes export jobs: load registrations, rebuild the canonical set, render
// the PDF for the requested query and filter, upload it and record the result.
type ExportProcessor struct {
	loader   RecordLoader
	renderer *exports.Renderer
	uploader Uploader
	queue    JobQueue
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
	backoff  time.Duration
}

// NewExportProcessor creates an export job processor.
func NewExportProcessor(loader RecordLoader, renderer *exports.Renderer, uploader Uploader, q JobQueue, m *metrics.Metrics, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProcessor{
		loader:   loader,
		renderer: renderer,
		uploader: uploader,
		queue:    q,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		backoff:  queue.RetryBackoff,
	}
}

// Process executes one export job and returns its completed status.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) (queue.ExportStatus, error) {
	payload, err := job.ExportPayload()
	if err != nil {
		return queue.ExportStatus{}, &permanentError{err: err}
	}
	filter := dashboard.FilterAll
	if payload.Filter != "" {
		if filter, err = dashboard.ParseFilter(payload.Filter); err != nil {
			return queue.ExportStatus{}, &permanentError{err: fmt.Errorf("job %s: %w", job.ID, err)}
		}
	}

	records, err := p.loader.Load(ctx)
	if err != nil {
		return queue.ExportStatus{}, fmt.Errorf("load registrations: %w", err)
	}
	canonical := registrations.Deduplicate(records)
	at := p.now()
	snap := dashboard.Snapshot{
		Records: canonical,
		Query:   payload.Query,
		Filter:  filter,
		Counts:  dashboard.CountStatuses(canonical),
		TakenAt: at,
	}

	var buf bytes.Buffer
	n, err := p.renderer.Render(&buf, snap, at)
	if err != nil {
		return queue.ExportStatus{}, err
	}
	name := p.renderer.FileName(at)
	key := storage.ExportKey(job.ID, name, at)
	if err := p.uploader.UploadExport(ctx, key, name, &buf, int64(buf.Len())); err != nil {
		return queue.ExportStatus{}, fmt.Errorf("s3 upload: %w", err)
	}

	p.logger.Info("export completed", zap.String("job_id", job.ID), zap.String("s3_key", key), zap.Int("records", n))
	return queue.ExportStatus{
		JobID:     job.ID,
		State:     queue.StateCompleted,
		ObjectKey: key,
		FileName:  name,
		Records:   n,
		Attempt:   job.Attempt,
		UpdatedAt: at.UTC(),
	}, nil
}

// Handle runs one job and records its outcome: completed, re-queued, or failed. Permanent
// failures skip the retries.
func (p *ExportProcessor) Handle(ctx context.Context, job *queue.Job) error {
	p.setStatus(ctx, queue.ExportStatus{JobID: job.ID, State: queue.StateRunning, Attempt: job.Attempt})

	st, err := p.Process(ctx, job)
	p.metrics.Export("async", err)
	if err == nil {
		p.setStatus(ctx, st)
		return nil
	}

	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
	var dead bool
	if IsPermanent(err) {
		dead = true
		if dlErr := p.queue.DeadLetter(ctx, job); dlErr != nil {
			p.logger.Error("dead-letter failed", zap.Error(dlErr))
		}
	} else {
		var reErr error
		if dead, reErr = p.queue.Retry(ctx, job); reErr != nil {
			p.logger.Error("retry enqueue failed", zap.Error(reErr))
			dead = true
		}
	}
	state := queue.StateQueued
	if dead {
		state = queue.StateFailed
	}
	p.setStatus(ctx, queue.ExportStatus{JobID: job.ID, State: state, Error: err.Error(), Attempt: job.Attempt})
	return err
}

func (p *ExportProcessor) setStatus(ctx context.Context, st queue.ExportStatus) {
	if err := p.queue.SetStatus(ctx, st); err != nil {
		p.logger.Warn("set export status failed", zap.String("job_id", st.JobID), zap.Error(err))
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ExportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Handle(ctx, job); err != nil && !IsPermanent(err) {
			p.sleep(ctx)
		}
	}
}

func (p *ExportProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
