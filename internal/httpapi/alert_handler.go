package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"

	"go.uber.org/zap"
)

// AlertStore 报警存储接口（由 repository.AlertsRepository 实现）
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	ListAlerts(ctx context.Context, limit int) ([]*models.Alert, error)
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.Alert, error)
}

// AlertHandler 报警查询 API Handler
type AlertHandler struct {
	store     AlertStore
	listLimit int // 列表返回上限
	logger    *zap.Logger
}

// NewAlertHandler 创建报警 Handler
func NewAlertHandler(store AlertStore, listLimit int, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		store:     store,
		listLimit: listLimit,
		logger:    logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *AlertHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	path := r.URL.Path
	switch {
	case path == "/api/alerts" && r.Method == http.MethodGet:
		h.ListAlerts(w, r)
	case path == "/api/alerts" && r.Method == http.MethodPost:
		h.CreateAlert(w, r)
	case path == "/api/alerts/export" && r.Method == http.MethodGet:
		h.ExportAlerts(w, r)
	case strings.HasPrefix(path, "/api/alerts/"):
		id := strings.TrimPrefix(path, "/api/alerts/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.GetAlert(w, r, id)
		case http.MethodPatch:
			h.UpdateStatus(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ListAlerts GET /api/alerts
// 返回 ≤ limit 条记录，按 timestamp 降序
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), h.listLimit)
	if limit > h.listLimit {
		limit = h.listLimit
	}

	alerts, err := h.store.ListAlerts(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, alerts)
}

// createAlertRequest POST /api/alerts 请求体
type createAlertRequest struct {
	Timestamp     *time.Time      `json:"timestamp"`
	FrameNumber   int64           `json:"frame_number"`
	UnknownID     string          `json:"unknown_id"`
	DetectionType string          `json:"detection_type"`
	Location      json.RawMessage `json:"location"`
}

// CreateAlert POST /api/alerts
// 201 创建成功；400 必填字段缺失；500 存储失败
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid request body", models.ErrValidation))
		return
	}

	alert := &models.Alert{
		FrameNumber:   req.FrameNumber,
		UnknownID:     req.UnknownID,
		DetectionType: req.DetectionType,
		Location:      req.Location,
	}
	if req.Timestamp != nil {
		alert.Timestamp = *req.Timestamp
	}

	created, err := h.store.CreateAlert(r.Context(), alert)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// GetAlert GET /api/alerts/{id}（toast 点击跳转的详情视图数据源）
func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request, id string) {
	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// updateStatusRequest PATCH /api/alerts/{id} 请求体
type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus PATCH /api/alerts/{id}
// 200 更新成功（返回带新 updatedAt 的完整记录）；400 非法状态值；404 未知 id
func (h *AlertHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid request body", models.ErrValidation))
		return
	}

	updated, err := h.store.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// ExportAlerts GET /api/alerts/export
// 导出与列表同界的 xlsx（后台报表）
func (h *AlertHandler) ExportAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.store.ListAlerts(r.Context(), h.listLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	data, err := GenerateAlertExport(alerts)
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("failed to generate export: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="alerts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
