package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAlertStore 内存版 AlertStore（与 repository 保持相同的错误语义）
type fakeAlertStore struct {
	alerts map[string]*models.Alert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: map[string]*models.Alert{}}
}

func (f *fakeAlertStore) CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	if err := alert.Validate(); err != nil {
		return nil, err
	}
	if alert.ID == "" {
		alert.ID = fmt.Sprintf("alert-%d", len(f.alerts)+1)
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	alert.Status = models.AlertPending
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = alert.CreatedAt
	f.alerts[alert.ID] = alert
	return alert, nil
}

func (f *fakeAlertStore) ListAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	out := []*models.Alert{}
	for _, a := range f.alerts {
		out = append(out, a)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAlertStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	a, ok := f.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", models.ErrNotFound, id)
	}
	return a, nil
}

func (f *fakeAlertStore) UpdateStatus(ctx context.Context, id, status string) (*models.Alert, error) {
	if !models.ValidAlertStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", models.ErrValidation, status)
	}
	a, ok := f.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", models.ErrNotFound, id)
	}
	a.Status = models.AlertStatus(status)
	a.UpdatedAt = time.Now()
	return a, nil
}

func setupAlertHandler(t *testing.T) (*fakeAlertStore, *AlertHandler) {
	store := newFakeAlertStore()
	h := NewAlertHandler(store, 50, zap.NewNop())
	return store, h
}

func seedAlert(t *testing.T, store *fakeAlertStore) *models.Alert {
	created, err := store.CreateAlert(context.Background(), &models.Alert{
		FrameNumber:   42,
		UnknownID:     "1693392000042-0",
		DetectionType: "unknown_person",
		Location:      json.RawMessage(`{"zone":"entrance"}`),
	})
	require.NoError(t, err)
	return created
}

func TestListAlerts_OK(t *testing.T) {
	store, h := setupAlertHandler(t)
	seedAlert(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var alerts []*models.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alerts))
	assert.Len(t, alerts, 1)
	assert.Equal(t, models.AlertPending, alerts[0].Status)
}

func TestCreateAlert_Created(t *testing.T) {
	_, h := setupAlertHandler(t)

	body := `{"frame_number":42,"unknown_id":"u-1","detection_type":"unknown_person","location":{"zone":"aisle-2"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.AlertPending, created.Status)
	assert.False(t, created.Timestamp.IsZero())
}

func TestCreateAlert_MissingLocation_BadRequest(t *testing.T) {
	store, h := setupAlertHandler(t)

	body := `{"frame_number":42,"unknown_id":"u-1","detection_type":"unknown_person"}`
	req := httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "location")
	// 失败不落库
	assert.Empty(t, store.alerts)
}

func TestUpdateStatus_OK(t *testing.T) {
	store, h := setupAlertHandler(t)
	alert := seedAlert(t, store)

	req := httptest.NewRequest(http.MethodPatch, "/api/alerts/"+alert.ID,
		strings.NewReader(`{"status":"handled"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, models.AlertHandled, updated.Status)
}

func TestUpdateStatus_InvalidStatus_BadRequest(t *testing.T) {
	store, h := setupAlertHandler(t)
	alert := seedAlert(t, store)

	req := httptest.NewRequest(http.MethodPatch, "/api/alerts/"+alert.ID,
		strings.NewReader(`{"status":"bogus"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	// 存储未被改动
	assert.Equal(t, models.AlertPending, store.alerts[alert.ID].Status)
}

func TestUpdateStatus_UnknownID_NotFound(t *testing.T) {
	_, h := setupAlertHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/alerts/nonexistent",
		strings.NewReader(`{"status":"handled"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAlert_OK(t *testing.T) {
	store, h := setupAlertHandler(t)
	alert := seedAlert(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/"+alert.ID, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAlerts_MethodNotAllowed(t *testing.T) {
	_, h := setupAlertHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/alerts/some-id", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestExportAlerts_XLSX(t *testing.T) {
	store, h := setupAlertHandler(t)
	seedAlert(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/export", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"),
	)
	assert.NotEmpty(t, w.Body.Bytes())
}
