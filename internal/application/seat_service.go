package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/event"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
	redisinfra "github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
)

const (
	seatCacheTTL = 30 * time.Second
)

type SeatService struct {
	seats seat.Store
	deps
}

func NewSeatService(seats seat.Store, opts ...Option) *SeatService {
	return &SeatService{seats: seats, deps: newDeps(opts)}
}

// SeedSeatMap はカタログの座席配置を座席ストアに反映する
// 仮押さえ中・予約済みの座席は変更しない
func (s *SeatService) SeedSeatMap(ctx context.Context, m *event.SeatMap) (int, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	n, err := s.seats.Seed(ctx, m.Seats())
	if err != nil {
		return 0, fmt.Errorf("座席配置の反映に失敗: %w", err)
	}
	s.invalidate(ctx, m.EventID)
	logger.Info("座席配置を反映しました",
		zap.String("event_id", m.EventID),
		zap.Int("total", m.TotalSeats()),
		zap.Int("applied", n),
	)
	return n, nil
}

// SeedFromCatalog はカタログのすべての座席配置を反映する
func (s *SeatService) SeedFromCatalog(ctx context.Context, c event.Catalog) (int, error) {
	maps, err := c.ListSeatMaps(ctx)
	if err != nil {
		return 0, fmt.Errorf("座席配置の取得に失敗: %w", err)
	}
	total := 0
	for _, m := range maps {
		n, err := s.SeedSeatMap(ctx, m)
		if err != nil {
			return total, fmt.Errorf("イベント %s: %w", m.EventID, err)
		}
		total += n
	}
	return total, nil
}

func (s *SeatService) GetStatus(ctx context.Context, eventID string, seatIDs []string) (map[string]seat.Status, error) {
	if eventID == "" {
		return nil, seat.ErrEventIDRequired
	}
	ids := seat.NormalizeIDs(seatIDs)
	if len(ids) == 0 {
		return nil, seat.ErrSeatIDsRequired
	}
	return s.seats.GetStatus(ctx, eventID, ids)
}

func (s *SeatService) CountAvailableSeats(ctx context.Context, eventID string) (int, error) {
	// キャッシュから取得を試みる
	if s.cache != nil {
		count, err := s.cache.GetAvailableCount(ctx, eventID)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.String("event_id", eventID), zap.Int("count", count))
			return count, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	count, err := s.seats.CountAvailable(ctx, eventID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetAvailableCount(ctx, eventID, count, seatCacheTTL); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}

	return count, nil
}

// InvalidateCache はイベントのキャッシュを無効化する
func (s *SeatService) InvalidateCache(ctx context.Context, eventID string) {
	s.invalidate(ctx, eventID)
}
