package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Manager 认领管理器
//
// 检测条目本体（Redis Streams 条目）不可变，"is_viewed" 标记落在伴生键
// "<prefix><channel>:<id>" 上，用 SET NX 条件写实现 false → true 的单调转换：
// N 个互不通信的订阅者并发认领同一条目时，恰好一个调用得到 true。
// 本服务从不删除该键，所以转换不可逆。
type Manager struct {
	client    *redis.Client
	keyPrefix string        // 如 "detections:viewed:"
	ttl       time.Duration // 0 表示永不过期（保留期对齐事件流自身的保留策略）
	logger    *zap.Logger
}

// NewManager 创建认领管理器
func NewManager(client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

func (m *Manager) key(channel, id string) string {
	return m.keyPrefix + channel + ":" + id
}

// Claim 认领一条检测
// 返回 (true, nil)  —— 本次调用完成了转换（赢）
// 返回 (false, nil) —— 其他调用者已认领（输，预期内，非错误）
// 返回 (false, err) —— 存储/网络故障，由调用方决定重试策略
func (m *Manager) Claim(ctx context.Context, channel, id string) (bool, error) {
	won, err := m.client.SetNX(ctx, m.key(channel, id), "1", m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim detection %s/%s: %w", channel, id, err)
	}
	return won, nil
}

// IsViewed 查询某条检测是否已被认领（诊断用，不参与认领竞争）
func (m *Manager) IsViewed(ctx context.Context, channel, id string) (bool, error) {
	n, err := m.client.Exists(ctx, m.key(channel, id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check viewed flag %s/%s: %w", channel, id, err)
	}
	return n > 0, nil
}
