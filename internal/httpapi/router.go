package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAlertRoutes 注册报警查询 API
func (r *Router) RegisterAlertRoutes(a *AlertHandler) {
	r.Handle("/api/alerts", a.ServeHTTP)
	r.Handle("/api/alerts/", a.ServeHTTP)
}

// RegisterRestockRoutes 注册补货请求 API（移动端补货流程）
func (r *Router) RegisterRestockRoutes(h *RestockHandler) {
	r.Handle("/api/restock-requests", h.ServeHTTP)
}

// RegisterNotificationRoutes 注册仪表盘 WebSocket 通知端点
func (r *Router) RegisterNotificationRoutes(ws *WSHandler) {
	r.Handle("/ws/notifications", ws.ServeHTTP)
}

// RegisterHealthRoutes 注册健康检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
