package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/outbox"
	"github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/id"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/clock"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/tracing"
)

// SeatLocker は座席集合に対するプロセス間ロック（Redis）
// 返された release は必ず呼ぶこと
type SeatLocker interface {
	LockSeats(ctx context.Context, eventID string, seatIDs []string) (release func(context.Context), err error)
}

// AvailabilityCache は空席数のキャッシュ
type AvailabilityCache interface {
	GetAvailableCount(ctx context.Context, eventID string) (int, error)
	SetAvailableCount(ctx context.Context, eventID string, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID string) error
}

// maxCASRetries は Version 競合時に読み直す回数の上限
const maxCASRetries = 5

type deps struct {
	clock     clock.Clock
	ids       id.Generator
	metrics   *metrics.Metrics
	tracer    *tracing.Tracer
	locker    SeatLocker
	cache     AvailabilityCache
	publisher outbox.Publisher
}

// Option はサービスの依存を差し替える
type Option func(*deps)

func WithClock(c clock.Clock) Option { return func(d *deps) { d.clock = c } }

func WithIDGenerator(g id.Generator) Option { return func(d *deps) { d.ids = g } }

func WithMetrics(m *metrics.Metrics) Option { return func(d *deps) { d.metrics = m } }

func WithTracer(t *tracing.Tracer) Option { return func(d *deps) { d.tracer = t } }

func WithSeatLocker(l SeatLocker) Option { return func(d *deps) { d.locker = l } }

func WithAvailabilityCache(c AvailabilityCache) Option { return func(d *deps) { d.cache = c } }

func WithPublisher(p outbox.Publisher) Option { return func(d *deps) { d.publisher = p } }

func newDeps(opts []Option) deps {
	d := deps{
		clock:  clock.Real{},
		ids:    id.NewUUIDGenerator(),
		tracer: tracing.New(""),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// invalidate は空席数キャッシュを捨てる。失敗はログのみ
func (d *deps) invalidate(ctx context.Context, eventID string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Invalidate(ctx, eventID); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.String("event_id", eventID), zap.Error(err))
	}
}

// publish はイベントを発行する。失敗はログのみ
func (d *deps) publish(ctx context.Context, e outbox.Event) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, e); err != nil {
		logger.Warn("イベント発行に失敗しました", zap.String("event", e.EventName()), zap.Error(err))
	}
}
