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

type fakeRestockStore struct {
	requests []*models.RestockRequest
}

func (f *fakeRestockStore) CreateRequest(ctx context.Context, req *models.RestockRequest) (*models.RestockRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.ID = fmt.Sprintf("req-%d", len(f.requests)+1)
	req.Status = models.AlertPending
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	f.requests = append(f.requests, req)
	return req, nil
}

func (f *fakeRestockStore) ListRequests(ctx context.Context, limit int) ([]*models.RestockRequest, error) {
	if len(f.requests) > limit {
		return f.requests[:limit], nil
	}
	return f.requests, nil
}

func TestCreateRestockRequest_Created(t *testing.T) {
	store := &fakeRestockStore{}
	h := NewRestockHandler(store, 50, zap.NewNop())

	body := `{"product_id":"sku-102","message":"Shelf 4 nearly empty"}`
	req := httptest.NewRequest(http.MethodPost, "/api/restock-requests", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.RestockRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "sku-102", created.ProductID)
	assert.Equal(t, models.AlertPending, created.Status)
}

func TestCreateRestockRequest_MissingMessage_BadRequest(t *testing.T) {
	store := &fakeRestockStore{}
	h := NewRestockHandler(store, 50, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/restock-requests",
		strings.NewReader(`{"product_id":"sku-102"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "message")
	assert.Empty(t, store.requests)
}

func TestListRestockRequests_OK(t *testing.T) {
	store := &fakeRestockStore{}
	_, err := store.CreateRequest(context.Background(), &models.RestockRequest{
		ProductID: "sku-1",
		Message:   "low stock",
	})
	require.NoError(t, err)

	h := NewRestockHandler(store, 50, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/restock-requests", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var requests []*models.RestockRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &requests))
	assert.Len(t, requests, 1)
}
