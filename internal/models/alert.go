package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AlertStatus 报警状态
type AlertStatus string

const (
	AlertPending AlertStatus = "pending"
	AlertHandled AlertStatus = "handled"
)

// ValidAlertStatus 校验状态取值
func ValidAlertStatus(s string) bool {
	return s == string(AlertPending) || s == string(AlertHandled)
}

// Alert 报警记录（对应 alerts 表，持久层，独立于瞬态检测流）
// 状态机：初始 pending；仅暴露 pending → handled 转换
type Alert struct {
	ID            string          `json:"id" db:"id"`
	Timestamp     time.Time       `json:"timestamp" db:"ts"`
	FrameNumber   int64           `json:"frame_number" db:"frame_number"`
	UnknownID     string          `json:"unknown_id" db:"unknown_id"`
	DetectionType string          `json:"detection_type" db:"detection_type"`
	Location      json.RawMessage `json:"location" db:"location"` // 结构化位置，对本服务不透明
	Status        AlertStatus     `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// Validate 校验必填字段（缺失的字段名写进错误信息）
func (a *Alert) Validate() error {
	if a.FrameNumber <= 0 {
		return fmt.Errorf("%w: frame_number is required", ErrValidation)
	}
	if a.UnknownID == "" {
		return fmt.Errorf("%w: unknown_id is required", ErrValidation)
	}
	if a.DetectionType == "" {
		return fmt.Errorf("%w: detection_type is required", ErrValidation)
	}
	if len(a.Location) == 0 {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	return nil
}

// RestockRequest 手动补货请求（对应 restock_requests 表）
// 由店员在移动端/后台直接创建，不经过检测管道
type RestockRequest struct {
	ID        string      `json:"id" db:"id"`
	ProductID string      `json:"product_id" db:"product_id"`
	Message   string      `json:"message" db:"message"`
	Timestamp time.Time   `json:"timestamp" db:"ts"`
	Status    AlertStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time   `json:"updatedAt" db:"updated_at"`
}

// Validate 校验必填字段
func (r *RestockRequest) Validate() error {
	if r.ProductID == "" {
		return fmt.Errorf("%w: product_id is required", ErrValidation)
	}
	if r.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	return nil
}
