package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

const (
	seatLockTTL        = 5 * time.Second
	seatLockRetries    = 3
	seatLockRetryDelay = 50 * time.Millisecond
)

const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	client *redis.Client
	key    string
	value  string
}

// LockManager は分散ロックを管理する
// 座席の最終的な排他は座席ストアが担い、このロックはインスタンス間の競合を減らすだけ
type LockManager struct {
	client   *redis.Client
	metrics  *metrics.Metrics
	newToken func() string
}

func NewLockManager(client *redis.Client, m *metrics.Metrics) *LockManager {
	return &LockManager{
		client:   client,
		metrics:  m,
		newToken: func() string { return uuid.New().String() },
	}
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := m.newToken()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &DistributedLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*DistributedLock, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireLock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// LockSeats はイベントの座席集合に対するロックを取得し、解放関数を返す
// キーは座席IDをソートして組み立てるため、指定順に依らず同じ集合は同じキーになる
func (m *LockManager) LockSeats(ctx context.Context, eventID string, seatIDs []string) (func(context.Context), error) {
	start := time.Now()
	lock, err := m.AcquireLockWithRetry(ctx, SeatSetKey(eventID, seatIDs), seatLockTTL, seatLockRetries, seatLockRetryDelay)
	if err != nil {
		m.metrics.ObserveLock("seat_set", "failed", time.Since(start))
		return nil, err
	}
	m.metrics.ObserveLock("seat_set", "acquired", time.Since(start))

	return func(ctx context.Context) {
		if err := lock.Release(ctx); err != nil {
			logger.Warn("座席ロックの解放に失敗",
				zap.String("key", lock.key),
				zap.Error(err),
			)
		}
	}, nil
}

// SeatSetKey は座席集合のロックキーを返す
func SeatSetKey(eventID string, seatIDs []string) string {
	ids := append([]string(nil), seatIDs...)
	sort.Strings(ids)
	return fmt.Sprintf("seats:%s:%s", eventID, strings.Join(ids, ","))
}

// Release はロックを解放する（Lua スクリプトで安全に解放）
func (l *DistributedLock) Release(ctx context.Context) error {
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}
