package notifier

import (
	"fmt"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"
)

// Toast 推给前端的瞬态通知（前端按 duration_ms 自动消失，可手动关闭）
// 点击 detail_path 跳详情并关闭；不回写任何检测/报警状态
type Toast struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"` // "restock" | "unknown_person"
	Title      string `json:"title"`
	Message    string `json:"message"`
	ImageURL   string `json:"image_url,omitempty"`
	DetailPath string `json:"detail_path"`
	DurationMS int64  `json:"duration_ms"`
}

// BuildToast 按检测类型生成通道特定的摘要
func BuildToast(det *models.Detection, duration time.Duration) Toast {
	toast := Toast{
		ID:         det.ID,
		Kind:       string(det.Type),
		DurationMS: duration.Milliseconds(),
	}

	switch det.Type {
	case models.DetectionRestock:
		toast.Title = "Restock needed"
		toast.Message = fmt.Sprintf("Low stock detected at frame %d (%d empty slots)",
			det.FrameNumber, det.Restock.BboxCount)
		toast.ImageURL = det.Restock.ImageURL
		toast.DetailPath = "/inventory/restock/" + det.ID
	case models.DetectionUnknownPerson:
		toast.Title = "Unknown person detected"
		if det.UnknownPerson.Location != "" {
			toast.Message = fmt.Sprintf("Unrecognized person near %s (%.0f%% confidence, frame %d)",
				det.UnknownPerson.Location, det.UnknownPerson.Confidence*100, det.FrameNumber)
		} else {
			toast.Message = fmt.Sprintf("Unrecognized person (%.0f%% confidence, frame %d)",
				det.UnknownPerson.Confidence*100, det.FrameNumber)
		}
		toast.DetailPath = "/security/alerts/" + det.ID
	}

	return toast
}
