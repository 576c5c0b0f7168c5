package notifier

import (
	"sync"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Session 一个已连接的仪表盘会话（一个打开的页面 = 一个独立订阅者）
type Session struct {
	conn          *websocket.Conn
	send          chan Toast
	done          chan struct{}
	once          sync.Once
	toastDuration time.Duration
	logger        *zap.Logger
}

// NewSession 创建会话
func NewSession(conn *websocket.Conn, toastDuration time.Duration, logger *zap.Logger) *Session {
	return &Session{
		conn:          conn,
		send:          make(chan Toast, 16),
		done:          make(chan struct{}),
		toastDuration: toastDuration,
		logger:        logger,
	}
}

// Notify 实现 consumer.Notifier：构造 toast 并入队
// 发送缓冲满（慢客户端）时丢弃本条并记录 —— 瞬态通知不值得阻塞管道
func (s *Session) Notify(det *models.Detection) {
	toast := BuildToast(det, s.toastDuration)
	select {
	case s.send <- toast:
	case <-s.done:
	default:
		s.logger.Warn("Session send buffer full, dropping toast",
			zap.String("detection_id", det.ID),
		)
	}
}

// Done 会话关闭后关闭
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close 关闭会话（幂等）
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// WritePump 发送循环：toast 序列化下发 + 定期 ping
// 每个会话一个 goroutine，串行化所有写操作
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case toast := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(toast); err != nil {
				s.logger.Debug("Session write failed, closing", zap.Error(err))
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// ReadPump 读循环：只用来探测客户端断开（前端不上行数据）
func (s *Session) ReadPump() {
	defer s.Close()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Hub 会话注册表（只做登记和计数，会话之间不通信）
type Hub struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
	logger   *zap.Logger
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		logger:   logger,
	}
}

// Register 登记会话
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	h.logger.Info("Dashboard session connected", zap.Int("sessions", n))
}

// Unregister 注销会话
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	n := len(h.sessions)
	h.mu.Unlock()
	h.logger.Info("Dashboard session disconnected", zap.Int("sessions", n))
}

// Len 当前会话数
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
