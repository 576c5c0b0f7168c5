package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/claim"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/config"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/consumer"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/database"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"
	mqttbridge "github.com/Huzaifa-202/autonomous-store-sub000/internal/mqtt"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/notifier"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/repository"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/stream"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// streamReadBlock 订阅读循环的 XREAD 阻塞时长
const streamReadBlock = 5 * time.Second

// DetectionService 检测报警服务（整合各层）
type DetectionService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// 各层组件
	stream      *stream.Stream
	claims      *claim.Manager
	hub         *notifier.Hub
	webhook     *notifier.Webhook // 可为 nil
	alertsRepo  *repository.AlertsRepository
	restockRepo *repository.RestockRequestsRepository
	bridge      *mqttbridge.Bridge // 可为 nil
}

// NewDetectionService 创建检测报警服务
func NewDetectionService(cfg *config.Config, logger *zap.Logger) (*DetectionService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建 Repository 层
	alertsRepo := repository.NewAlertsRepository(db, logger)
	restockRepo := repository.NewRestockRequestsRepository(db, logger)

	// 4. 创建事件流与认领管理器
	detectionStream := stream.NewStream(redisClient, cfg.Alert.StreamKeyPrefix, streamReadBlock, logger)
	claims := claim.NewManager(
		redisClient,
		cfg.Alert.ClaimKeyPrefix,
		time.Duration(cfg.Alert.ClaimTTLHours)*time.Hour,
		logger,
	)

	// 5. 通知出口
	hub := notifier.NewHub(logger)
	var webhook *notifier.Webhook
	if cfg.Alert.WebhookURL != "" {
		webhook = notifier.NewWebhook(cfg.Alert.WebhookURL, svcToastDuration(cfg), logger)
	}

	svc := &DetectionService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		stream:      detectionStream,
		claims:      claims,
		hub:         hub,
		webhook:     webhook,
		alertsRepo:  alertsRepo,
		restockRepo: restockRepo,
	}

	// 6. 可选的 MQTT 接入桥
	if cfg.MQTT.Enabled {
		bridge, err := mqttbridge.NewBridge(&cfg.MQTT, detectionStream, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create mqtt bridge: %w", err)
		}
		svc.bridge = bridge
	}

	return svc, nil
}

// Start 启动服务（目前只有 MQTT 桥需要启动；订阅管道按会话创建）
func (s *DetectionService) Start(ctx context.Context) error {
	if s.bridge != nil {
		if err := s.bridge.Start(ctx); err != nil {
			return fmt.Errorf("failed to start mqtt bridge: %w", err)
		}
	}
	return nil
}

// Stop 停止服务
func (s *DetectionService) Stop() error {
	if s.bridge != nil {
		s.bridge.Stop()
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}
	return nil
}

// NewSessionPipeline 为一个仪表盘会话构造专属管道
// 会话 toast 之外，赢家还会把通知同步到 webhook（如配置）
func (s *DetectionService) NewSessionPipeline(n consumer.Notifier) *consumer.Pipeline {
	out := n
	if s.webhook != nil {
		out = notifier.Multi{n, s.webhook}
	}
	return consumer.NewPipeline(
		s.stream,
		s.claims,
		out,
		s,
		time.Duration(s.config.Alert.RecencyWindowSec)*time.Second,
		s.logger,
	)
}

// PromoteDetection 实现 consumer.AlertSink：把赢得认领的检测晋升为持久报警
func (s *DetectionService) PromoteDetection(ctx context.Context, det *models.Detection) error {
	location, err := locationJSON(det)
	if err != nil {
		return err
	}

	alert := &models.Alert{
		Timestamp:     det.EffectiveTime(),
		FrameNumber:   det.FrameNumber,
		UnknownID:     det.ID,
		DetectionType: string(det.Type),
		Location:      location,
	}

	if _, err := s.alertsRepo.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to persist promoted detection: %w", err)
	}
	return nil
}

// locationJSON 把类型特定的载荷收进不透明的 location 结构
func locationJSON(det *models.Detection) (json.RawMessage, error) {
	fields := map[string]interface{}{}
	switch det.Type {
	case models.DetectionRestock:
		fields["bbox_count"] = det.Restock.BboxCount
		if det.Restock.ImageURL != "" {
			fields["image_url"] = det.Restock.ImageURL
		}
	case models.DetectionUnknownPerson:
		if det.UnknownPerson.Location != "" {
			fields["zone"] = det.UnknownPerson.Location
		}
		fields["confidence"] = det.UnknownPerson.Confidence
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal location: %w", err)
	}
	return data, nil
}

// 访问器（供 main 接线）

func (s *DetectionService) AlertsRepo() *repository.AlertsRepository {
	return s.alertsRepo
}

func (s *DetectionService) RestockRepo() *repository.RestockRequestsRepository {
	return s.restockRepo
}

func (s *DetectionService) Hub() *notifier.Hub {
	return s.hub
}

func (s *DetectionService) ToastDuration() time.Duration {
	return svcToastDuration(s.config)
}

func svcToastDuration(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Alert.ToastDurationSec) * time.Second
}
