package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/consumer"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/notifier"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PipelineFactory 为一个新会话构造专属检测管道
// 每个仪表盘页面一条独立管道，互不协调；去重靠认领的条件写
type PipelineFactory func(n consumer.Notifier) *consumer.Pipeline

// WSHandler 仪表盘 WebSocket 通知端点
type WSHandler struct {
	hub           *notifier.Hub
	factory       PipelineFactory
	toastDuration time.Duration
	logger        *zap.Logger
	upgrader      websocket.Upgrader
}

// NewWSHandler 创建 WebSocket Handler
func NewWSHandler(hub *notifier.Hub, factory PipelineFactory, toastDuration time.Duration, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:           hub,
		factory:       factory,
		toastDuration: toastDuration,
		logger:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 仪表盘与 API 不同源部署
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP GET /ws/notifications
// 升级连接后：登记会话 → 启动该会话的订阅管道 → 会话断开时取消订阅并注销
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	session := notifier.NewSession(conn, h.toastDuration, h.logger)
	h.hub.Register(session)

	// 会话专属管道：两个通道各一个订阅
	ctx, cancel := context.WithCancel(context.Background())
	pipeline := h.factory(session)
	subs := pipeline.Start(ctx, models.ChannelRestock, models.ChannelUnknownPerson)

	go session.WritePump()
	go session.ReadPump()

	// 会话结束 → 停止订阅（不撤回已在途的回调），注销会话
	go func() {
		<-session.Done()
		cancel()
		for _, sub := range subs {
			sub.Cancel()
		}
		h.hub.Unregister(session)
	}()
}
