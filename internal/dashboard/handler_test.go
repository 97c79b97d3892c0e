package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/regreview/internal/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T, store *fakeStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newTestService(store)
	_, _ = svc.Reload(context.Background())
	h := NewHandler(svc, nil)

	r := gin.New()
	r.POST("/dashboard/reload", h.Reload)
	r.GET("/dashboard", h.Show)
	r.PUT("/dashboard/search", h.Search)
	r.PUT("/dashboard/filter", h.Filter)
	r.PUT("/dashboard/page", h.Page)
	r.GET("/registrations/:id", h.Get)
	r.PATCH("/registrations/:id/status", h.UpdateStatus)
	r.DELETE("/registrations/:id", h.Delete)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestHandler_ShowAndReload(t *testing.T) {
	store := &fakeStore{docs: []models.RawRecord{doc("a", "a@x.com", base, "pending")}}
	r := newTestRouter(t, store)

	rec, env := do(t, r, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Len(t, view.Records, 1)
	assert.Equal(t, 1, view.Counts.Pending)

	store.listErr = errors.New("store down")
	rec, env = do(t, r, http.MethodPost, "/dashboard/reload", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "store down")
}

func TestHandler_Navigation(t *testing.T) {
	store := &fakeStore{docs: []models.RawRecord{
		doc("a", "a@x.com", base, "pending"),
		doc("b", "b@x.com", base+1, "approved"),
	}}
	r := newTestRouter(t, store)

	rec, env := do(t, r, http.MethodPut, "/dashboard/filter", FilterRequest{Status: "approved"})
	require.Equal(t, http.StatusOK, rec.Code)
	var view View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Records, 1)
	assert.Equal(t, "b", view.Records[0].ID)

	rec, _ = do(t, r, http.MethodPut, "/dashboard/filter", FilterRequest{Status: "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, r, http.MethodPut, "/dashboard/page", PageRequest{Page: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, r, http.MethodPut, "/dashboard/search", SearchRequest{Query: "zzz"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Empty(t, view.Records)
}

func TestHandler_Registration(t *testing.T) {
	store := &fakeStore{docs: []models.RawRecord{doc("a", "a@x.com", base, "pending")}}
	r := newTestRouter(t, store)

	rec, _ := do(t, r, http.MethodGet, "/registrations/a", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, r, http.MethodGet, "/registrations/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := do(t, r, http.MethodPatch, "/registrations/a/status", StatusRequest{Status: "rejected", RejectionReason: "late"})
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.CanonicalRecord
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, models.StatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "late", *got.RejectionReason)

	rec, _ = do(t, r, http.MethodPatch, "/registrations/a/status", StatusRequest{Status: "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.updateErr = errors.New("quota")
	rec, env = do(t, r, http.MethodPatch, "/registrations/a/status", StatusRequest{Status: "approved"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "failed to update registration, please try again", env.Error)

	rec, env = do(t, r, http.MethodDelete, "/registrations/a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Empty(t, view.Records)
}
