package exports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/regreview/internal/dashboard"
	"github.com/aura-events/regreview/internal/models"
	"github.com/aura-events/regreview/pkg/queue"
)

type staticSource struct{ snap dashboard.Snapshot }

func (s staticSource) Snapshot() dashboard.Snapshot { return s.snap }

type fakeJobs struct {
	enqueued []queue.ExportPayload
	statuses map[string]queue.ExportStatus
	err      error
}

func (f *fakeJobs) EnqueueExport(ctx context.Context, p queue.ExportPayload) (*queue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.enqueued = append(f.enqueued, p)
	return queue.NewExportJob(p, time.Now())
}

func (f *fakeJobs) GetStatus(ctx context.Context, id string) (queue.ExportStatus, error) {
	if f.err != nil {
		return queue.ExportStatus{}, f.err
	}
	st, ok := f.statuses[id]
	if !ok {
		return queue.ExportStatus{}, queue.ErrJobNotFound
	}
	return st, nil
}

type fakeSigner struct{}

func (fakeSigner) ExportDownloadURL(ctx context.Context, key string) (string, error) {
	return "https://signed.example/" + key, nil
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/dashboard/export.pdf", h.Download)
	r.POST("/exports", h.Enqueue)
	r.GET("/exports/:id", h.Status)
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHandler_Download(t *testing.T) {
	src := staticSource{snap: snapshot(record("1", "Ada", "ada@example.com", models.StatusPending, 1, 0))}
	h := NewHandler(src, NewRenderer("Registrations", time.UTC), nil, nil, nil, nil)
	h.now = func() time.Time { return time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC) }

	rec := serve(newRouter(h), http.MethodGet, "/dashboard/export.pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Registrations_2025-06-30.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))
}

func TestHandler_AsyncDisabled(t *testing.T) {
	h := NewHandler(staticSource{}, NewRenderer("", nil), nil, nil, nil, nil)
	r := newRouter(h)

	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodPost, "/exports").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/exports/abc").Code)
}

func TestHandler_Enqueue(t *testing.T) {
	snap := snapshot()
	snap.Query = "ada"
	snap.Filter = "approved"
	jobs := &fakeJobs{}
	h := NewHandler(staticSource{snap: snap}, NewRenderer("", nil), jobs, fakeSigner{}, nil, nil)

	rec := serve(newRouter(h), http.MethodPost, "/exports")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, jobs.enqueued, 1)
	assert.Equal(t, queue.ExportPayload{Query: "ada", Filter: "approved"}, jobs.enqueued[0])

	var body struct {
		Data queue.ExportStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.JobID)
	assert.Equal(t, queue.StateQueued, body.Data.State)

	jobs.err = errors.New("redis down")
	assert.Equal(t, http.StatusInternalServerError, serve(newRouter(h), http.MethodPost, "/exports").Code)
}

func TestHandler_Status(t *testing.T) {
	jobs := &fakeJobs{statuses: map[string]queue.ExportStatus{
		"done":    {JobID: "done", State: queue.StateCompleted, ObjectKey: "exports/k.pdf"},
		"waiting": {JobID: "waiting", State: queue.StateQueued},
	}}
	h := NewHandler(staticSource{}, NewRenderer("", nil), jobs, fakeSigner{}, nil, nil)
	r := newRouter(h)

	var body struct {
		Data StatusResponse `json:"data"`
	}
	rec := serve(r, http.MethodGet, "/exports/done")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://signed.example/exports/k.pdf", body.Data.DownloadURL)

	body.Data = StatusResponse{}
	rec = serve(r, http.MethodGet, "/exports/waiting")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, queue.StateQueued, body.Data.State)
	assert.Empty(t, body.Data.DownloadURL)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/exports/missing").Code)
}
