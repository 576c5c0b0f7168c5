package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/config"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/httpapi"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/logger"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "store-alert")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 创建服务
	svc, err := service.NewDetectionService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create detection service",
			zap.Error(err),
		)
	}
	defer svc.Stop()

	// 4. 接线 HTTP 路由
	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterAlertRoutes(httpapi.NewAlertHandler(svc.AlertsRepo(), cfg.Alert.ListLimit, log))
	router.RegisterRestockRoutes(httpapi.NewRestockHandler(svc.RestockRepo(), cfg.Alert.ListLimit, log))
	router.RegisterNotificationRoutes(httpapi.NewWSHandler(
		svc.Hub(),
		svc.NewSessionPipeline,
		svc.ToastDuration(),
		log,
	))

	// 5. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. 启动服务
	if err := svc.Start(ctx); err != nil {
		log.Fatal("Failed to start detection service",
			zap.Error(err),
		)
	}

	srv := service.NewServer(cfg.HTTP.Addr, router, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// 7. 等待信号（优雅关闭）
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server exited",
				zap.Error(err),
			)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop HTTP server",
			zap.Error(err),
		)
	}
}
