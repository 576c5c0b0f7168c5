package stream

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Stream 检测事件流（Redis Streams）
// 每个通道是一个独立的 stream key；条目在通道内按追加顺序投递
type Stream struct {
	client    *redis.Client
	keyPrefix string        // 如 "detections:stream:"
	readBlock time.Duration // XREAD 阻塞时长；< 0 表示非阻塞轮询（测试用）
	logger    *zap.Logger
}

// NewStream 创建检测事件流访问器
func NewStream(client *redis.Client, keyPrefix string, readBlock time.Duration, logger *zap.Logger) *Stream {
	return &Stream{
		client:    client,
		keyPrefix: keyPrefix,
		readBlock: readBlock,
		logger:    logger,
	}
}

func (s *Stream) key(channel string) string {
	return s.keyPrefix + channel
}

// Append 追加一条检测事件，返回流分配的条目 ID
// 生产端（边缘节点 / MQTT 桥）调用；本服务从不删除条目
func (s *Stream) Append(ctx context.Context, channel string, det *models.Detection) (string, error) {
	if err := det.Validate(); err != nil {
		return "", err
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key(channel),
		Values: encodeDetection(det),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append detection to %s: %w", channel, err)
	}

	return id, nil
}

// Handler 订阅回调，按通道内追加顺序逐条调用
type Handler func(det *models.Detection)

// Subscription 一次订阅的句柄（显式生命周期，取消后不再有回调）
type Subscription struct {
	channel string
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Channel 返回订阅的通道名
func (sub *Subscription) Channel() string {
	return sub.channel
}

// Cancel 停止本订阅的后续回调（幂等；不撤回已在途的回调）
func (sub *Subscription) Cancel() {
	sub.once.Do(sub.cancel)
}

// Done 订阅读循环退出后关闭
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Subscribe 订阅一个通道
// 从 "0" 开始读：订阅时已存在的积压条目也会被投递（至少一次语义，
// 去重靠 claim 的条件写，不靠"首次投递"）
func (s *Stream) Subscribe(ctx context.Context, channel string, handler Handler) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		channel: channel,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go s.readLoop(subCtx, channel, handler, sub)

	return sub
}

func (s *Stream) readLoop(ctx context.Context, channel string, handler Handler, sub *Subscription) {
	defer close(sub.done)

	lastID := "0"
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.key(channel), lastID},
			Count:   100,
			Block:   s.readBlock,
		}).Result()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err == redis.Nil {
				// 没有新条目
				if s.readBlock < 0 {
					time.Sleep(100 * time.Millisecond)
				}
				continue
			}
			// 传输层故障：底层自行重连，这里只记录并退避
			s.logger.Warn("Detection stream read failed",
				zap.String("channel", channel),
				zap.Error(err),
			)
			time.Sleep(time.Second)
			continue
		}

		for _, streamRes := range res {
			for _, msg := range streamRes.Messages {
				lastID = msg.ID

				det, err := decodeDetection(msg.ID, msg.Values)
				if err != nil {
					s.logger.Warn("Skipping malformed detection entry",
						zap.String("channel", channel),
						zap.String("entry_id", msg.ID),
						zap.Error(err),
					)
					continue
				}

				if ctx.Err() != nil {
					return
				}
				handler(det)
			}
		}
	}
}

// encodeDetection 将检测事件展平为 stream values（全部转字符串）
func encodeDetection(det *models.Detection) map[string]interface{} {
	values := map[string]interface{}{
		"type":         string(det.Type),
		"frame_number": strconv.FormatInt(det.FrameNumber, 10),
	}
	if det.Timestamp != nil {
		values["timestamp"] = strconv.FormatInt(det.Timestamp.UnixMilli(), 10)
	}
	switch det.Type {
	case models.DetectionRestock:
		values["bbox_count"] = strconv.Itoa(det.Restock.BboxCount)
		if det.Restock.ImageURL != "" {
			values["image_url"] = det.Restock.ImageURL
		}
	case models.DetectionUnknownPerson:
		if det.UnknownPerson.Location != "" {
			values["location"] = det.UnknownPerson.Location
		}
		values["confidence"] = strconv.FormatFloat(det.UnknownPerson.Confidence, 'f', -1, 64)
	}
	return values
}

// decodeDetection 从 stream values 还原检测事件
// 到达时间取自条目 ID 的毫秒部分（"1693392000123-0"）
func decodeDetection(entryID string, values map[string]interface{}) (*models.Detection, error) {
	det := &models.Detection{
		ID:          entryID,
		Type:        models.DetectionType(getString(values, "type")),
		ArrivalTime: arrivalTimeFromID(entryID),
	}

	if fn := getString(values, "frame_number"); fn != "" {
		n, err := strconv.ParseInt(fn, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frame_number %q: %w", fn, err)
		}
		det.FrameNumber = n
	}

	if ts := getString(values, "timestamp"); ts != "" {
		ms, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		t := time.UnixMilli(ms)
		det.Timestamp = &t
	}

	switch det.Type {
	case models.DetectionRestock:
		payload := &models.RestockPayload{
			ImageURL: getString(values, "image_url"),
		}
		if bc := getString(values, "bbox_count"); bc != "" {
			n, err := strconv.Atoi(bc)
			if err != nil {
				return nil, fmt.Errorf("invalid bbox_count %q: %w", bc, err)
			}
			payload.BboxCount = n
		}
		det.Restock = payload
	case models.DetectionUnknownPerson:
		payload := &models.UnknownPersonPayload{
			Location: getString(values, "location"),
		}
		if cf := getString(values, "confidence"); cf != "" {
			f, err := strconv.ParseFloat(cf, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid confidence %q: %w", cf, err)
			}
			payload.Confidence = f
		}
		det.UnknownPerson = payload
	default:
		return nil, fmt.Errorf("unknown detection type %q", det.Type)
	}

	return det, nil
}

func getString(values map[string]interface{}, key string) string {
	if v, ok := values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func arrivalTimeFromID(entryID string) time.Time {
	for i := 0; i < len(entryID); i++ {
		if entryID[i] == '-' {
			if ms, err := strconv.ParseInt(entryID[:i], 10, 64); err == nil {
				return time.UnixMilli(ms)
			}
			break
		}
	}
	return time.Now()
}
