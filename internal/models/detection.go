package models

import (
	"fmt"
	"time"
)

// DetectionType 检测类型
type DetectionType string

const (
	DetectionRestock       DetectionType = "restock"
	DetectionUnknownPerson DetectionType = "unknown_person"
)

// 检测事件流的两个逻辑通道
const (
	ChannelRestock       = "restock_detections"
	ChannelUnknownPerson = "unknown_person_detections"
)

// ChannelForType 根据检测类型返回对应通道
func ChannelForType(t DetectionType) (string, error) {
	switch t {
	case DetectionRestock:
		return ChannelRestock, nil
	case DetectionUnknownPerson:
		return ChannelUnknownPerson, nil
	default:
		return "", fmt.Errorf("%w: unknown detection type %q", ErrValidation, t)
	}
}

// RestockPayload 补货检测载荷
type RestockPayload struct {
	BboxCount int    `json:"bbox_count"`
	ImageURL  string `json:"image_url,omitempty"`
}

// UnknownPersonPayload 陌生人检测载荷
type UnknownPersonPayload struct {
	Location   string  `json:"location,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Detection 检测事件（瞬态记录，存活在检测事件流中）
// 载荷按 type 区分：restock 与 unknown_person 二选一，另一个为 nil
type Detection struct {
	ID          string        `json:"id"`                  // 流分配的键，通道内唯一
	Type        DetectionType `json:"type"`
	Timestamp   *time.Time    `json:"timestamp,omitempty"` // 生产端事件时间，可能缺失
	ArrivalTime time.Time     `json:"-"`                   // 到达时间（取自流条目 ID）
	FrameNumber int64         `json:"frame_number"`

	Restock       *RestockPayload       `json:"restock,omitempty"`
	UnknownPerson *UnknownPersonPayload `json:"unknown_person,omitempty"`
}

// EffectiveTime 有效事件时间：生产端时间缺失时退化为到达时间
func (d *Detection) EffectiveTime() time.Time {
	if d.Timestamp != nil {
		return *d.Timestamp
	}
	return d.ArrivalTime
}

// Validate 校验载荷与类型是否一致
func (d *Detection) Validate() error {
	switch d.Type {
	case DetectionRestock:
		if d.Restock == nil {
			return fmt.Errorf("%w: restock payload is required", ErrValidation)
		}
	case DetectionUnknownPerson:
		if d.UnknownPerson == nil {
			return fmt.Errorf("%w: unknown_person payload is required", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown detection type %q", ErrValidation, d.Type)
	}
	return nil
}
