package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/claim"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"
	"github.com/Huzaifa-202/autonomous-store-sub000/internal/stream"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestPipeline(t *testing.T) (*miniredis.Miniredis, *stream.Stream, *claim.Manager) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	logger := zap.NewNop()
	s := stream.NewStream(redisClient, "detections:stream:", -1, logger)
	claims := claim.NewManager(redisClient, "detections:viewed:", time.Hour, logger)

	return mr, s, claims
}

// countingNotifier 记录收到的通知
type countingNotifier struct {
	mu     sync.Mutex
	toasts []*models.Detection
}

func (n *countingNotifier) Notify(det *models.Detection) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, det)
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.toasts)
}

// countingSink 记录晋升到持久层的检测
type countingSink struct {
	mu       sync.Mutex
	promoted []*models.Detection
}

func (s *countingSink) PromoteDetection(ctx context.Context, det *models.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promoted = append(s.promoted, det)
	return nil
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.promoted)
}

func unknownPersonDetection(age time.Duration) *models.Detection {
	ts := time.Now().Add(-age)
	return &models.Detection{
		Type:        models.DetectionUnknownPerson,
		Timestamp:   &ts,
		FrameNumber: 7,
		UnknownPerson: &models.UnknownPersonPayload{
			Location:   "entrance",
			Confidence: 0.92,
		},
	}
}

func TestPipeline_FreshDetection_Notified(t *testing.T) {
	_, s, claims := setupTestPipeline(t)
	ctx := context.Background()

	_, err := s.Append(ctx, models.ChannelUnknownPerson, unknownPersonDetection(2*time.Second))
	require.NoError(t, err)

	n := &countingNotifier{}
	sink := &countingSink{}
	p := NewPipeline(s, claims, n, sink, 30*time.Second, zap.NewNop())

	subs := p.Start(ctx, models.ChannelUnknownPerson)
	defer cancelAll(subs)

	require.Eventually(t, func() bool {
		return n.count() == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, sink.count())
}

func TestPipeline_TwoIndependentSessions_OneToastTotal(t *testing.T) {
	_, s, claims := setupTestPipeline(t)
	ctx := context.Background()

	// 同一条检测同时投递给两个互不通信的订阅者
	_, err := s.Append(ctx, models.ChannelUnknownPerson, unknownPersonDetection(2*time.Second))
	require.NoError(t, err)

	n1 := &countingNotifier{}
	n2 := &countingNotifier{}
	p1 := NewPipeline(s, claims, n1, nil, 30*time.Second, zap.NewNop())
	p2 := NewPipeline(s, claims, n2, nil, 30*time.Second, zap.NewNop())

	subs := append(
		p1.Start(ctx, models.ChannelUnknownPerson),
		p2.Start(ctx, models.ChannelUnknownPerson)...,
	)
	defer cancelAll(subs)

	// 两个会话合计恰好一条 toast
	require.Eventually(t, func() bool {
		return n1.count()+n2.count() == 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, n1.count()+n2.count())
}

func TestPipeline_StaleBacklog_ClaimedButNotNotified(t *testing.T) {
	_, s, claims := setupTestPipeline(t)
	ctx := context.Background()

	// 重连回放场景：60秒前的积压条目
	id, err := s.Append(ctx, models.ChannelUnknownPerson, unknownPersonDetection(60*time.Second))
	require.NoError(t, err)

	n := &countingNotifier{}
	sink := &countingSink{}
	p := NewPipeline(s, claims, n, sink, 30*time.Second, zap.NewNop())

	subs := p.Start(ctx, models.ChannelUnknownPerson)
	defer cancelAll(subs)

	// 认领要成功（未来重连不再评估），但不弹 toast
	require.Eventually(t, func() bool {
		viewed, err := claims.IsViewed(ctx, models.ChannelUnknownPerson, id)
		return err == nil && viewed
	}, 3*time.Second, 20*time.Millisecond)

	// 过期条目仍然落库
	require.Eventually(t, func() bool {
		return sink.count() == 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, n.count())
}

func TestPipeline_ClaimAlreadyTaken_NoNotifyNoPromote(t *testing.T) {
	_, s, claims := setupTestPipeline(t)
	ctx := context.Background()

	id, err := s.Append(ctx, models.ChannelUnknownPerson, unknownPersonDetection(time.Second))
	require.NoError(t, err)

	// 其他订阅者已经认领过
	won, err := claims.Claim(ctx, models.ChannelUnknownPerson, id)
	require.NoError(t, err)
	require.True(t, won)

	n := &countingNotifier{}
	sink := &countingSink{}
	p := NewPipeline(s, claims, n, sink, 30*time.Second, zap.NewNop())

	subs := p.Start(ctx, models.ChannelUnknownPerson)
	defer cancelAll(subs)

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 0, n.count())
	assert.Equal(t, 0, sink.count())
}

func TestPipeline_ClaimStoreDown_DetectionDropped(t *testing.T) {
	_, s, _ := setupTestPipeline(t)
	ctx := context.Background()

	// 认领走一个已经挂掉的存储：重试一次后丢弃，不弹 toast 也不崩
	deadMr := miniredis.RunT(t)
	deadClient := redis.NewClient(&redis.Options{Addr: deadMr.Addr()})
	deadMr.Close()
	deadClaims := claim.NewManager(deadClient, "detections:viewed:", time.Hour, zap.NewNop())

	_, err := s.Append(ctx, models.ChannelUnknownPerson, unknownPersonDetection(time.Second))
	require.NoError(t, err)

	n := &countingNotifier{}
	p := NewPipeline(s, deadClaims, n, nil, 30*time.Second, zap.NewNop())

	subs := p.Start(ctx, models.ChannelUnknownPerson)
	defer cancelAll(subs)

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 0, n.count())
}

func TestIsRecent(t *testing.T) {
	p := NewPipeline(nil, nil, nil, nil, 30*time.Second, zap.NewNop())

	assert.True(t, p.isRecent(unknownPersonDetection(2*time.Second)))
	assert.False(t, p.isRecent(unknownPersonDetection(60*time.Second)))
	// 边界：刚好等于窗口 → 过期
	assert.False(t, p.isRecent(unknownPersonDetection(30*time.Second)))
}

func cancelAll(subs []*stream.Subscription) {
	for _, sub := range subs {
		sub.Cancel()
	}
}
