package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/regreview/internal/dashboard"
	"github.com/aura-events/regreview/internal/metrics"
	"github.com/aura-events/regreview/pkg/queue"
	"github.com/aura-events/regreview/pkg/response"
)

// Snapshotter exposes the dashboard's current records, query and filter.
type Snapshotter interface {
	Snapshot() dashboard.Snapshot
}

// JobQueue accepts export jobs and reports their progress.
type JobQueue interface {
	EnqueueExport(ctx context.Context, payload queue.ExportPayload) (*queue.Job, error)
	GetStatus(ctx context.Context, id string) (queue.ExportStatus, error)
}

// URLSigner issues download links for finished exports.
type URLSigner interface {
	ExportDownloadURL(ctx context.Context, key string) (string, error)
}

// StatusResponse is returned by GET /exports/:id.
type StatusResponse struct {
	queue.ExportStatus
	DownloadURL string `json:"download_url,omitempty"`
}

// Handler serves PDF exports.
type Handler struct {
	source   Snapshotter
	renderer *Renderer
	jobs     JobQueue
	signer   URLSigner
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates an export handler. jobs and signer may be nil, which disables
// asynchronous exports.
func NewHandler(source Snapshotter, renderer *Renderer, jobs JobQueue, signer URLSigner, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		source:   source,
		renderer: renderer,
		jobs:     jobs,
		signer:   signer,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Download handles GET /dashboard/export.pdf.
func (h *Handler) Download(c *gin.Context) {
	at := h.now()
	var buf bytes.Buffer
	n, err := h.renderer.Render(&buf, h.source.Snapshot(), at)
	h.metrics.Export("sync", err)
	if err != nil {
		h.logger.Error("render export failed", zap.Error(err))
		response.Internal(c, "failed to generate export")
		return
	}
	name := h.renderer.FileName(at)
	h.logger.Info("export generated", zap.String("file", name), zap.Int("records", n))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(200, "application/pdf", buf.Bytes())
}

// Enqueue handles POST /exports. The job exports the current query and filter.
func (h *Handler) Enqueue(c *gin.Context) {
	if h.jobs == nil {
		response.ServiceUnavailable(c, "export queue not configured")
		return
	}
	snap := h.source.Snapshot()
	job, err := h.jobs.EnqueueExport(c.Request.Context(), queue.ExportPayload{
		Query:  snap.Query,
		Filter: string(snap.Filter),
	})
	if err != nil {
		h.logger.Error("enqueue export failed", zap.Error(err))
		response.Internal(c, "failed to queue export")
		return
	}
	response.Created(c, queue.ExportStatus{JobID: job.ID, State: queue.StateQueued, UpdatedAt: job.CreatedAt})
}

// Status handles GET /exports/:id.
func (h *Handler) Status(c *gin.Context) {
	if h.jobs == nil {
		response.ServiceUnavailable(c, "export queue not configured")
		return
	}
	st, err := h.jobs.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		h.logger.Error("get export status failed", zap.Error(err))
		response.Internal(c, "failed to read export status")
		return
	}
	resp := StatusResponse{ExportStatus: st}
	if st.State == queue.StateCompleted && st.ObjectKey != "" && h.signer != nil {
		url, err := h.signer.ExportDownloadURL(c.Request.Context(), st.ObjectKey)
		if err != nil {
			h.logger.Warn("presign export failed", zap.String("job_id", st.JobID), zap.Error(err))
		} else {
			resp.DownloadURL = url
		}
	}
	response.OK(c, resp)
}
