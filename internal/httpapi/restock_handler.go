package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"

	"go.uber.org/zap"
)

// RestockStore 补货请求存储接口（由 repository.RestockRequestsRepository 实现）
type RestockStore interface {
	CreateRequest(ctx context.Context, req *models.RestockRequest) (*models.RestockRequest, error)
	ListRequests(ctx context.Context, limit int) ([]*models.RestockRequest, error)
}

// RestockHandler 补货请求 Handler（移动端手动补货流程）
type RestockHandler struct {
	store     RestockStore
	listLimit int
	logger    *zap.Logger
}

// NewRestockHandler 创建补货请求 Handler
func NewRestockHandler(store RestockStore, listLimit int, logger *zap.Logger) *RestockHandler {
	return &RestockHandler{
		store:     store,
		listLimit: listLimit,
		logger:    logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *RestockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListRequests(w, r)
	case http.MethodPost:
		h.CreateRequest(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// createRestockRequest POST /api/restock-requests 请求体
type createRestockRequest struct {
	ProductID string     `json:"product_id"`
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp"`
}

// CreateRequest POST /api/restock-requests → 201；400 必填缺失；500 存储失败
func (h *RestockHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRestockRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid request body", models.ErrValidation))
		return
	}

	req := &models.RestockRequest{
		ProductID: body.ProductID,
		Message:   body.Message,
	}
	if body.Timestamp != nil {
		req.Timestamp = *body.Timestamp
	}

	created, err := h.store.CreateRequest(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ListRequests GET /api/restock-requests
func (h *RestockHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), h.listLimit)
	if limit > h.listLimit {
		limit = h.listLimit
	}

	requests, err := h.store.ListRequests(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, requests)
}
