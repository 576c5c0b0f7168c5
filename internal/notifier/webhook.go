package notifier

import (
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Webhook 可选的外部通知出口：把 toast 同步 POST 到运维配置的 URL
// 挂在赢得认领的管道后面，所以每条检测至多触发一次
type Webhook struct {
	httpClient    *resty.Client
	url           string
	toastDuration time.Duration
	logger        *zap.Logger
}

// NewWebhook 创建 webhook 通知器
func NewWebhook(url string, toastDuration time.Duration, logger *zap.Logger) *Webhook {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")

	return &Webhook{
		httpClient:    client,
		url:           url,
		toastDuration: toastDuration,
		logger:        logger,
	}
}

// Notify 实现 consumer.Notifier
// 失败只记录，不影响其余通知出口
func (w *Webhook) Notify(det *models.Detection) {
	toast := BuildToast(det, w.toastDuration)

	resp, err := w.httpClient.R().
		SetBody(toast).
		Post(w.url)
	if err != nil {
		w.logger.Error("Webhook notify failed",
			zap.String("detection_id", det.ID),
			zap.Error(err),
		)
		return
	}
	if resp.IsError() {
		w.logger.Warn("Webhook returned error status",
			zap.String("detection_id", det.ID),
			zap.Int("status", resp.StatusCode()),
		)
	}
}

// Multi 把多个通知出口合成一个（如 会话 toast + webhook）
type Multi []Notifier

// Notifier 通知出口接口（与 consumer.Notifier 一致，避免包循环依赖在此重声明）
type Notifier interface {
	Notify(det *models.Detection)
}

// Notify 依次调用每个出口
func (m Multi) Notify(det *models.Detection) {
	for _, n := range m {
		n.Notify(det)
	}
}
