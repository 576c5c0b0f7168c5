package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/config"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/stream"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// detectionEnvelope 边缘节点发布的检测消息（JSON）
// 只做传输搬运：检测本身由上游视觉推理产出
type detectionEnvelope struct {
	Type        models.DetectionType `json:"type"`
	Timestamp   *int64               `json:"timestamp,omitempty"` // unix 毫秒，可缺失
	FrameNumber int64                `json:"frame_number"`
	BboxCount   int                  `json:"bbox_count,omitempty"`
	ImageURL    string               `json:"image_url,omitempty"`
	Location    string               `json:"location,omitempty"`
	Confidence  float64              `json:"confidence,omitempty"`
}

// Bridge MQTT 接入桥：订阅边缘摄像头主题，把检测追加进事件流
type Bridge struct {
	client mqtt.Client
	cfg    *config.MQTTConfig
	stream *stream.Stream
	logger *zap.Logger
}

// NewBridge 创建并连接 MQTT 接入桥
func NewBridge(cfg *config.MQTTConfig, s *stream.Stream, logger *zap.Logger) (*Bridge, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Bridge{
		client: client,
		cfg:    cfg,
		stream: s,
		logger: logger,
	}, nil
}

// Start 订阅检测主题（如 "store/+/detections"）
func (b *Bridge) Start(ctx context.Context) error {
	token := b.client.Subscribe(b.cfg.Topic, b.cfg.QoS, func(client mqtt.Client, msg mqtt.Message) {
		b.handleMessage(ctx, msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", b.cfg.Topic, token.Error())
	}

	b.logger.Info("MQTT ingest bridge started",
		zap.String("broker", b.cfg.Broker),
		zap.String("topic", b.cfg.Topic),
	)
	return nil
}

// handleMessage 解码并追加到对应通道；坏消息记录后跳过，不中断订阅
func (b *Bridge) handleMessage(ctx context.Context, topic string, payload []byte) {
	var env detectionEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Warn("Skipping malformed detection message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}

	det := &models.Detection{
		Type:        env.Type,
		FrameNumber: env.FrameNumber,
	}
	if env.Timestamp != nil {
		t := time.UnixMilli(*env.Timestamp)
		det.Timestamp = &t
	}
	switch env.Type {
	case models.DetectionRestock:
		det.Restock = &models.RestockPayload{
			BboxCount: env.BboxCount,
			ImageURL:  env.ImageURL,
		}
	case models.DetectionUnknownPerson:
		det.UnknownPerson = &models.UnknownPersonPayload{
			Location:   env.Location,
			Confidence: env.Confidence,
		}
	}

	channel, err := models.ChannelForType(env.Type)
	if err != nil {
		b.logger.Warn("Skipping detection with unknown type",
			zap.String("topic", topic),
			zap.String("type", string(env.Type)),
		)
		return
	}

	if _, err := b.stream.Append(ctx, channel, det); err != nil {
		b.logger.Error("Failed to append detection from MQTT",
			zap.String("topic", topic),
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
}

// Stop 断开 MQTT 连接
func (b *Bridge) Stop() {
	b.client.Unsubscribe(b.cfg.Topic)
	b.client.Disconnect(250)
	b.logger.Info("MQTT ingest bridge stopped")
}
