package dashboard

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/regreview/pkg/response"
)

// SearchRequest is the body for PUT /dashboard/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// FilterRequest is the body for PUT /dashboard/filter.
type FilterRequest struct {
	Status string `json:"status" binding:"required,oneof=all pending approved rejected"`
}

// PageRequest is the body for PUT /dashboard/page.
type PageRequest struct {
	Page int `json:"page" binding:"required,min=1"`
}

// StatusRequest is the body for PATCH /registrations/:id/status.
type StatusRequest struct {
	Status          string `json:"status" binding:"required,oneof=pending approved rejected"`
	RejectionReason string `json:"rejection_reason"`
}

// Handler exposes the dashboard commands over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Reload handles POST /dashboard/reload.
func (h *Handler) Reload(c *gin.Context) {
	view, err := h.svc.Reload(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, view)
}

// Show handles GET /dashboard.
func (h *Handler) Show(c *gin.Context) {
	response.OK(c, h.svc.View())
}

// Search handles PUT /dashboard/search.
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	response.OK(c, h.svc.Search(req.Query))
}

// Filter handles PUT /dashboard/filter.
func (h *Handler) Filter(c *gin.Context) {
	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.svc.SelectFilter(req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, view)
}

// Page handles PUT /dashboard/page.
func (h *Handler) Page(c *gin.Context) {
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.svc.SelectPage(req.Page)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, view)
}

// Get handles GET /registrations/:id. Returns the primary record with its history.
func (h *Handler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, rec)
}

// UpdateStatus handles PATCH /registrations/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rec, err := h.svc.CommitStatus(c.Request.Context(), c.Param("id"), req.Status, req.RejectionReason)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, rec)
}

// Delete handles DELETE /registrations/:id. Responds with the reloaded view.
func (h *Handler) Delete(c *gin.Context) {
	view, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, view)
}

func (h *Handler) fail(c *gin.Context, err error) {
	var (
		fetchErr   *FetchError
		persistErr *PersistenceError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidFilter), errors.Is(err, ErrPageOutOfRange):
		response.BadRequest(c, err.Error())
	case errors.As(err, &fetchErr):
		response.BadGateway(c, "failed to load registrations: "+fetchErr.Err.Error())
	case errors.As(err, &persistErr):
		response.BadGateway(c, "failed to "+persistErr.Op+" registration, please try again")
	default:
		h.logger.Error("dashboard request failed", zap.Error(err))
		response.Internal(c, "internal error")
	}
}
