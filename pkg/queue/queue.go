package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueExports is the Redis list key for PDF export jobs.
	QueueExports = "worker:exports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// StatusTTL bounds how long export status entries are kept.
	StatusTTL = 24 * time.Hour

	statusKeyPrefix = "export:status:"
	dequeueWait     = 5 * time.Second
)

// ErrJobNotFound is returned by GetStatus for unknown or expired job ids.
var ErrJobNotFound = errors.New("export job not found")

// JobType identifies the job kind.
type JobType string

const JobTypeExport JobType = "export_pdf"

// ExportPayload captures the dashboard view an export was requested for.
type ExportPayload struct {
	Query  string `json:"query"`
	Filter string `json:"filter"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// ExportState is the lifecycle state of an export job.
type ExportState string

const (
	StateQueued    ExportState = "queued"
	StateRunning   ExportState = "running"
	StateCompleted ExportState = "completed"
	StateFailed    ExportState = "failed"
)

// ExportStatus is stored in Redis per job and read by GET /exports/:id.
type ExportStatus struct {
	JobID     string      `json:"job_id"`
	State     ExportState `json:"state"`
	ObjectKey string      `json:"object_key,omitempty"`
	FileName  string      `json:"file_name,omitempty"`
	Records   int         `json:"records,omitempty"`
	Error     string      `json:"error,omitempty"`
	Attempt   int         `json:"attempt"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// StatusKey returns the Redis key holding the status of job id.
func StatusKey(id string) string {
	return statusKeyPrefix + id
}

// NewExportJob builds a fresh export job envelope.
func NewExportJob(payload ExportPayload, now time.Time) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      JobTypeExport,
		Payload:   body,
		CreatedAt: now,
	}, nil
}

// ExportPayload decodes the job payload.
func (j *Job) ExportPayload() (ExportPayload, error) {
	var p ExportPayload
	if j.Type != JobTypeExport {
		return p, fmt.Errorf("unknown job type: %s", j.Type)
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.Cmdable
	logger *zap.Logger
	wait   time.Duration
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger, wait: dequeueWait}
}

// EnqueueExport enqueues an export job and records it as queued.
func (q *Queue) EnqueueExport(ctx context.Context, payload ExportPayload) (*Job, error) {
	job, err := NewExportJob(payload, time.Now())
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.SetStatus(ctx, ExportStatus{JobID: job.ID, State: StateQueued}); err != nil {
		return nil, err
	}
	if err := q.client.RPush(ctx, QueueExports, raw).Err(); err != nil {
		return nil, fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued export job", zap.String("job_id", job.ID), zap.String("filter", payload.Filter))
	return job, nil
}

// Dequeue waits briefly for a job. A nil job with nil error means nothing arrived in time.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, q.wait, QueueExports).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ
// instead and reports dead as true.
func (q *Queue) Retry(ctx context.Context, job *Job) (dead bool, err error) {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.DeadLetter(ctx, job); err != nil {
			return false, err
		}
		return true, nil
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if err := q.client.RPush(ctx, QueueExports, raw).Err(); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}

// DeadLetter moves a job to the DLQ without further attempts.
func (q *Queue) DeadLetter(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
		return err
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// SetStatus stores the status of an export job.
func (q *Queue) SetStatus(ctx context.Context, st ExportStatus) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := q.client.Set(ctx, StatusKey(st.JobID), raw, StatusTTL).Err(); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// GetStatus reads the status of an export job.
func (q *Queue) GetStatus(ctx context.Context, id string) (ExportStatus, error) {
	raw, err := q.client.Get(ctx, StatusKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ExportStatus{}, ErrJobNotFound
		}
		return ExportStatus{}, fmt.Errorf("get status: %w", err)
	}
	var st ExportStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return ExportStatus{}, fmt.Errorf("unmarshal status: %w", err)
	}
	return st, nil
}
