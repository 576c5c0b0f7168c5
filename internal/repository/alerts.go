package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultListLimit 列表查询默认上限（保护调用方不被无界结果拖垮）
const DefaultListLimit = 50

// AlertsRepository 报警记录仓库（alerts 表）
type AlertsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertsRepository 创建报警记录仓库
func NewAlertsRepository(db *sql.DB, logger *zap.Logger) *AlertsRepository {
	return &AlertsRepository{
		db:     db,
		logger: logger,
	}
}

const alertColumns = `id, ts, frame_number, unknown_id, detection_type, location, status, created_at, updated_at`

// CreateAlert 创建报警记录
// 状态强制为 pending；timestamp 缺省取服务端当前时间；必填字段缺失返回 ErrValidation
func (r *AlertsRepository) CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	if alert == nil {
		return nil, fmt.Errorf("%w: alert is required", models.ErrValidation)
	}
	if err := alert.Validate(); err != nil {
		return nil, err
	}

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	// 状态机入口：新记录一律 pending
	alert.Status = models.AlertPending

	query := `
		INSERT INTO alerts (id, ts, frame_number, unknown_id, detection_type, location, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + alertColumns

	row := r.db.QueryRowContext(ctx, query,
		alert.ID,
		alert.Timestamp,
		alert.FrameNumber,
		alert.UnknownID,
		alert.DetectionType,
		[]byte(alert.Location),
		string(alert.Status),
	)

	created, err := scanAlert(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	return created, nil
}

// ListAlerts 按 timestamp 降序返回至多 limit 条记录
// limit <= 0 时取默认上限；无论库里有多少条，返回数量不超过 limit
func (r *AlertsRepository) ListAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		ORDER BY ts DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// GetAlert 按 id 获取单条记录
func (r *AlertsRepository) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", models.ErrValidation)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: alert %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// UpdateStatus 更新报警状态
// 非法状态值返回 ErrValidation 且不触库；未知 id 返回 ErrNotFound；
// 成功返回带新 updatedAt 的完整记录。handled → handled 幂等成功
func (r *AlertsRepository) UpdateStatus(ctx context.Context, id, status string) (*models.Alert, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", models.ErrValidation)
	}
	if !models.ValidAlertStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", models.ErrValidation, status)
	}

	query := `
		UPDATE alerts
		SET status = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + alertColumns

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id, status))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: alert %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to update alert status: %w", err)
	}

	return alert, nil
}

// rowScanner 兼容 *sql.Row 和 *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var alert models.Alert
	var unknownID, detectionType, status sql.NullString
	var frameNumber sql.NullInt64
	var location []byte

	err := row.Scan(
		&alert.ID,
		&alert.Timestamp,
		&frameNumber,
		&unknownID,
		&detectionType,
		&location,
		&status,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if frameNumber.Valid {
		alert.FrameNumber = frameNumber.Int64
	}
	if unknownID.Valid {
		alert.UnknownID = unknownID.String
	}
	if detectionType.Valid {
		alert.DetectionType = detectionType.String
	}
	if status.Valid {
		alert.Status = models.AlertStatus(status.String)
	}
	if len(location) > 0 {
		alert.Location = json.RawMessage(location)
	} else {
		alert.Location = json.RawMessage("{}")
	}

	return &alert, nil
}
