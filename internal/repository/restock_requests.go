package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RestockRequestsRepository 手动补货请求仓库（restock_requests 表）
type RestockRequestsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRestockRequestsRepository 创建补货请求仓库
func NewRestockRequestsRepository(db *sql.DB, logger *zap.Logger) *RestockRequestsRepository {
	return &RestockRequestsRepository{
		db:     db,
		logger: logger,
	}
}

const restockColumns = `id, product_id, message, ts, status, created_at, updated_at`

// CreateRequest 创建补货请求（状态强制 pending，timestamp 缺省当前时间）
func (r *RestockRequestsRepository) CreateRequest(ctx context.Context, req *models.RestockRequest) (*models.RestockRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is required", models.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	req.Status = models.AlertPending

	query := `
		INSERT INTO restock_requests (id, product_id, message, ts, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + restockColumns

	created, err := scanRestockRequest(r.db.QueryRowContext(ctx, query,
		req.ID,
		req.ProductID,
		req.Message,
		req.Timestamp,
		string(req.Status),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create restock request: %w", err)
	}

	return created, nil
}

// ListRequests 按 timestamp 降序返回至多 limit 条
func (r *RestockRequestsRepository) ListRequests(ctx context.Context, limit int) ([]*models.RestockRequest, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT ` + restockColumns + `
		FROM restock_requests
		ORDER BY ts DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query restock requests: %w", err)
	}
	defer rows.Close()

	requests := []*models.RestockRequest{}
	for rows.Next() {
		req, err := scanRestockRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restock request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate restock requests: %w", err)
	}

	return requests, nil
}

func scanRestockRequest(row rowScanner) (*models.RestockRequest, error) {
	var req models.RestockRequest
	var status sql.NullString

	err := row.Scan(
		&req.ID,
		&req.ProductID,
		&req.Message,
		&req.Timestamp,
		&status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if status.Valid {
		req.Status = models.AlertStatus(status.String)
	}

	return &req, nil
}
