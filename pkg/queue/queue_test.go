package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExportJob(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	job, err := NewExportJob(ExportPayload{Query: "ada", Filter: "pending"}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypeExport, job.Type)
	assert.Equal(t, 0, job.Attempt)
	assert.Equal(t, now, job.CreatedAt)

	raw, err := json.Marshal(job)
	require.NoError(t, err)
	var decoded Job
	require.NoError(t, json.Unmarshal(raw, &decoded))

	payload, err := decoded.ExportPayload()
	require.NoError(t, err)
	assert.Equal(t, ExportPayload{Query: "ada", Filter: "pending"}, payload)
}

func TestJob_ExportPayloadRejectsOtherTypes(t *testing.T) {
	job := &Job{ID: "x", Type: "email", Payload: json.RawMessage(`{}`)}
	_, err := job.ExportPayload()
	require.Error(t, err)

	job = &Job{ID: "y", Type: JobTypeExport, Payload: json.RawMessage(`not json`)}
	_, err = job.ExportPayload()
	require.Error(t, err)
}

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "export:status:abc", StatusKey("abc"))
}

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := NewQueue(client, nil)
	q.wait = time.Second
	return q, mr
}

func decodeJob(t *testing.T, raw string) Job {
	t.Helper()
	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	return job
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueExport(ctx, ExportPayload{Query: "ada", Filter: "rejected"})
	require.NoError(t, err)

	pending, err := mr.List(QueueExports)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	st, err := q.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, st.State)
	assert.Equal(t, StatusTTL, mr.TTL(StatusKey(job.ID)))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	payload, err := got.ExportPayload()
	require.NoError(t, err)
	assert.Equal(t, ExportPayload{Query: "ada", Filter: "rejected"}, payload)
	assert.False(t, mr.Exists(QueueExports))
}

func TestQueue_DequeueTimeout(t *testing.T) {
	q, _ := newTestQueue(t)

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_DequeueSkipsInvalidPayload(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.Push(QueueExports, "not json")
	require.NoError(t, err)

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.False(t, mr.Exists(QueueExports))
}

func TestQueue_Retry(t *testing.T) {
	tests := []struct {
		name        string
		attempt     int
		wantAttempt int
		wantDead    bool
		wantList    string
	}{
		{"first failure requeued", 0, 1, false, QueueExports},
		{"second failure requeued", 1, 2, false, QueueExports},
		{"third failure dead-lettered", 2, 3, true, QueueDLQ},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, mr := newTestQueue(t)
			job, err := NewExportJob(ExportPayload{Filter: "all"}, time.Now())
			require.NoError(t, err)
			job.Attempt = tt.attempt

			dead, err := q.Retry(context.Background(), job)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDead, dead)
			assert.Equal(t, tt.wantAttempt, job.Attempt)

			list, err := mr.List(tt.wantList)
			require.NoError(t, err)
			require.Len(t, list, 1)
			pushed := decodeJob(t, list[0])
			assert.Equal(t, job.ID, pushed.ID)
			assert.Equal(t, tt.wantAttempt, pushed.Attempt)

			other := QueueDLQ
			if tt.wantDead {
				other = QueueExports
			}
			assert.False(t, mr.Exists(other))
		})
	}
}

func TestQueue_RetryExhaustsIntoDLQ(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()
	_, err := q.EnqueueExport(ctx, ExportPayload{})
	require.NoError(t, err)

	var deadAt int
	for i := 1; i <= MaxRetries; i++ {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		dead, err := q.Retry(ctx, job)
		require.NoError(t, err)
		if dead {
			deadAt = i
			break
		}
	}
	assert.Equal(t, MaxRetries, deadAt)
	assert.False(t, mr.Exists(QueueExports))

	dlq, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	assert.Equal(t, MaxRetries, decodeJob(t, dlq[0]).Attempt)
}

func TestQueue_DeadLetter(t *testing.T) {
	q, mr := newTestQueue(t)
	job, err := NewExportJob(ExportPayload{Filter: "archived"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, q.DeadLetter(context.Background(), job))
	dlq, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	assert.Equal(t, 0, decodeJob(t, dlq[0]).Attempt)
}

func TestQueue_Status(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.GetStatus(ctx, "missing")
	require.ErrorIs(t, err, ErrJobNotFound)

	require.NoError(t, q.SetStatus(ctx, ExportStatus{JobID: "j1", State: StateCompleted, ObjectKey: "exports/k.pdf", Records: 4}))
	st, err := q.GetStatus(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, "exports/k.pdf", st.ObjectKey)
	assert.Equal(t, 4, st.Records)
	assert.False(t, st.UpdatedAt.IsZero())
}
