package consumer

import (
	"context"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/claim"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/stream"

	"go.uber.org/zap"
)

// Notifier 通知出口（赢得认领且通过新鲜度过滤的检测才会到这里）
type Notifier interface {
	Notify(det *models.Detection)
}

// AlertSink 持久化出口：赢家把检测晋升为持久报警记录
// 与新鲜度无关 —— 过期条目不弹 toast，但仍然落库
type AlertSink interface {
	PromoteDetection(ctx context.Context, det *models.Detection) error
}

// Pipeline 检测管道：订阅 → 认领 → 新鲜度过滤 → 通知
//
// 每个打开的仪表盘会话持有自己的 Pipeline 实例，彼此不共享进程内状态；
// 唯一的协调点是 Claim Manager 的条件写
type Pipeline struct {
	stream   *stream.Stream
	claims   *claim.Manager
	notifier Notifier
	sink     AlertSink // 可为 nil（纯通知会话）
	window   time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewPipeline 创建检测管道
func NewPipeline(s *stream.Stream, c *claim.Manager, n Notifier, sink AlertSink, window time.Duration, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		stream:   s,
		claims:   c,
		notifier: n,
		sink:     sink,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
}

// Start 在给定通道上启动订阅，返回订阅句柄（由调用方负责 Cancel）
func (p *Pipeline) Start(ctx context.Context, channels ...string) []*stream.Subscription {
	subs := make([]*stream.Subscription, 0, len(channels))
	for _, channel := range channels {
		ch := channel
		subs = append(subs, p.stream.Subscribe(ctx, ch, func(det *models.Detection) {
			p.handle(ctx, ch, det)
		}))
	}
	return subs
}

// handle 处理一条投递的检测
func (p *Pipeline) handle(ctx context.Context, channel string, det *models.Detection) {
	// 1. 认领（条件写，失败重试一次后放弃 —— 避免存储持续降级时的重试风暴）
	won, err := p.claims.Claim(ctx, channel, det.ID)
	if err != nil {
		won, err = p.claims.Claim(ctx, channel, det.ID)
		if err != nil {
			p.logger.Error("Claim failed after retry, dropping detection",
				zap.String("channel", channel),
				zap.String("detection_id", det.ID),
				zap.Error(err),
			)
			return
		}
	}
	if !won {
		// 输掉竞争是预期结果，其他会话已经处理
		p.logger.Debug("Claim lost",
			zap.String("channel", channel),
			zap.String("detection_id", det.ID),
		)
		return
	}

	// 2. 赢家负责落库（与 toast 无关，过期条目也要有持久记录）
	if p.sink != nil {
		if err := p.sink.PromoteDetection(ctx, det); err != nil {
			p.logger.Error("Failed to promote detection to alert store",
				zap.String("channel", channel),
				zap.String("detection_id", det.ID),
				zap.Error(err),
			)
			// 不影响通知路径
		}
	}

	// 3. 新鲜度过滤：认领已经完成，过期条目静默吞掉，
	//    重连回放积压时不会把历史事件当新事件弹出来
	if !p.isRecent(det) {
		p.logger.Debug("Stale detection suppressed",
			zap.String("channel", channel),
			zap.String("detection_id", det.ID),
			zap.Time("effective_time", det.EffectiveTime()),
		)
		return
	}

	// 4. 通知
	p.notifier.Notify(det)
}

func (p *Pipeline) isRecent(det *models.Detection) bool {
	return p.now().Sub(det.EffectiveTime()) < p.window
}
