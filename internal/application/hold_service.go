package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/config"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/tracing"
)

// sweepBatchSize はスイープ1回で読み込む仮押さえの件数
const sweepBatchSize = 500

// releaseAttempts は座席解放の試行回数
// 使い切った座席はスイープの回収処理が戻す
const releaseAttempts = 3

// HoldService は仮押さえのライフサイクルを管理する
// 状態の正は常にサーバー側の Hold で、クライアントのタイマーは表示用でしかない
type HoldService struct {
	seats seat.Store
	holds hold.Repository
	cfg   config.HoldConfig
	deps
}

func NewHoldService(seats seat.Store, holds hold.Repository, cfg config.HoldConfig, opts ...Option) *HoldService {
	if cfg.TTL <= 0 {
		cfg.TTL = hold.DefaultTTL
	}
	if cfg.Extension <= 0 {
		cfg.Extension = 5 * time.Minute
	}
	return &HoldService{seats: seats, holds: holds, cfg: cfg, deps: newDeps(opts)}
}

type CreateHoldInput struct {
	EventID        string
	SeatIDs        []string
	Owner          string
	IdempotencyKey string
}

func (s *HoldService) CreateHold(ctx context.Context, input CreateHoldInput) (h *hold.Hold, err error) {
	ctx, span := s.tracer.Start(ctx, "HoldService.CreateHold",
		attribute.String("event_id", input.EventID),
		attribute.Int("seat_count", len(input.SeatIDs)),
	)
	defer func() { tracing.End(span, err) }()

	ids := seat.NormalizeIDs(input.SeatIDs)
	switch {
	case input.EventID == "":
		return nil, hold.ErrEventIDRequired
	case input.Owner == "":
		return nil, hold.ErrOwnerRequired
	case len(ids) == 0:
		return nil, hold.ErrSeatIDsRequired
	case s.cfg.MaxSeatsPerHold > 0 && len(ids) > s.cfg.MaxSeatsPerHold:
		return nil, hold.ErrTooManySeats
	}

	// 冪等性チェック
	if input.IdempotencyKey != "" {
		existing, err := s.holds.GetActiveByIdempotencyKey(ctx, input.Owner, input.IdempotencyKey)
		if err == nil && !existing.IsExpiredAt(s.clock.Now()) {
			return existing, nil
		}
		if err != nil && !errors.Is(err, hold.ErrHoldNotFound) {
			return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
		}
	}

	if s.locker != nil {
		start := time.Now()
		release, err := s.locker.LockSeats(ctx, input.EventID, ids)
		if err != nil {
			s.metrics.ObserveLock("acquire", "failed", time.Since(start))
			s.metrics.IncHold("lock_failed")
			return nil, fmt.Errorf("%w: %v", ErrSeatsBusy, err)
		}
		s.metrics.ObserveLock("acquire", "success", time.Since(start))
		defer release(ctx)
	}

	holdID := s.ids.NewID()
	if err := s.seats.ClaimSeats(ctx, input.EventID, ids, holdID); err != nil {
		switch {
		case errors.Is(err, seat.ErrSeatConflict):
			s.metrics.IncHold("conflict")
			return nil, ErrSeatsUnavailable
		case errors.Is(err, seat.ErrSeatNotFound):
			s.metrics.IncHold("not_found")
			return nil, err
		}
		s.metrics.IncHold("error")
		return nil, fmt.Errorf("座席の仮押さえに失敗: %w", err)
	}

	snapshot, err := s.seats.GetSeats(ctx, input.EventID, ids)
	if err != nil {
		s.undoClaim(ctx, input.EventID, ids, holdID)
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	amount := 0
	for _, se := range snapshot {
		amount += se.Price
	}

	h = hold.NewHold(holdID, input.EventID, input.Owner, input.IdempotencyKey, ids, s.clock.Now(), s.cfg.TTL)
	h.Amount = amount
	if err := s.holds.Create(ctx, h); err != nil {
		s.undoClaim(ctx, input.EventID, ids, holdID)
		s.metrics.IncHold("error")
		return nil, fmt.Errorf("仮押さえの保存に失敗: %w", err)
	}

	s.invalidate(ctx, input.EventID)
	s.metrics.IncHold("success")
	logger.Info("仮押さえを作成しました",
		zap.String("hold_id", h.ID),
		zap.String("event_id", h.EventID),
		zap.Strings("seat_ids", h.SeatIDs),
		zap.Time("expires_at", h.ExpiresAt),
	)
	return h, nil
}

func (s *HoldService) undoClaim(ctx context.Context, eventID string, ids []string, holdID string) {
	if err := s.seats.ReleaseSeats(ctx, eventID, ids, holdID); err != nil && !errors.Is(err, seat.ErrSeatStale) {
		logger.Error("仮押さえの取り消しに失敗しました", zap.String("hold_id", holdID), zap.Error(err))
	}
}

func (s *HoldService) GetHold(ctx context.Context, id string) (*hold.Hold, error) {
	return s.holds.GetByID(ctx, id)
}

// ExtendHold は有効期限を一度だけ延長する
func (s *HoldService) ExtendHold(ctx context.Context, id string) (h *hold.Hold, err error) {
	ctx, span := s.tracer.Start(ctx, "HoldService.ExtendHold", attribute.String("hold_id", id))
	defer func() { tracing.End(span, err) }()

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		h, err = s.holds.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		prev := h.Version
		if err := h.Extend(s.clock.Now(), s.cfg.Extension); err != nil {
			return nil, err
		}
		err = s.holds.Update(ctx, h, prev)
		if errors.Is(err, hold.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("仮押さえの更新に失敗: %w", err)
		}
		logger.Info("仮押さえを延長しました", zap.String("hold_id", h.ID), zap.Time("expires_at", h.ExpiresAt))
		return h, nil
	}
	return nil, hold.ErrVersionConflict
}

// ReleaseHold は仮押さえを解放する
// 既に終了している仮押さえに対しては何もせず nil を返す
func (s *HoldService) ReleaseHold(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "HoldService.ReleaseHold", attribute.String("hold_id", id))
	defer func() { tracing.End(span, err) }()

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		h, err := s.holds.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if h.Status.IsTerminal() {
			return nil
		}
		prev := h.Version
		if err := h.Release(s.clock.Now()); err != nil {
			return nil
		}
		err = s.holds.Update(ctx, h, prev)
		if errors.Is(err, hold.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("仮押さえの更新に失敗: %w", err)
		}
		s.releaseSeats(ctx, h)
		logger.Info("仮押さえを解放しました", zap.String("hold_id", h.ID))
		return nil
	}
	return hold.ErrVersionConflict
}

// ExpireDueHolds は期限切れの仮押さえを expired にして座席を戻す
// 確定処理と競合して負けた仮押さえは数えない
func (s *HoldService) ExpireDueHolds(ctx context.Context) (n int, err error) {
	ctx, span := s.tracer.Start(ctx, "HoldService.ExpireDueHolds")
	defer func() {
		span.SetAttributes(attribute.Int("expired", n))
		tracing.End(span, err)
	}()

	now := s.clock.Now()
	for {
		due, err := s.holds.ListExpiredActive(ctx, now, sweepBatchSize)
		if err != nil {
			return n, fmt.Errorf("期限切れの仮押さえ取得に失敗: %w", err)
		}
		batch := 0
		for _, h := range due {
			expired, err := s.expireHold(ctx, h, now)
			if err != nil {
				logger.Error("仮押さえの期限切れ処理に失敗しました", zap.String("hold_id", h.ID), zap.Error(err))
				continue
			}
			if expired {
				batch++
			}
		}
		n += batch
		if len(due) < sweepBatchSize || batch == 0 || ctx.Err() != nil {
			break
		}
	}

	if _, err := s.reclaimOrphanedSeats(ctx, now); err != nil {
		logger.Error("取り残された座席の回収に失敗しました", zap.Error(err))
	}

	s.metrics.AddHoldsExpired(n)
	if active, err := s.holds.CountActive(ctx); err == nil {
		s.metrics.SetActiveHolds(active)
	}
	return n, nil
}

// expireHold は h を expired へ CAS し、勝った場合のみ座席を戻す
// 別の書き込みに負けた場合は (false, nil)
func (s *HoldService) expireHold(ctx context.Context, h *hold.Hold, now time.Time) (bool, error) {
	prev := h.Version
	if err := h.Expire(now); err != nil {
		return false, nil
	}
	err := s.holds.Update(ctx, h, prev)
	if errors.Is(err, hold.ErrVersionConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.releaseSeats(ctx, h)
	logger.Info("仮押さえが期限切れになりました", zap.String("hold_id", h.ID), zap.Strings("seat_ids", h.SeatIDs))
	return true, nil
}

// releaseSeats は終了した仮押さえの座席を戻す
// Stale は既に戻っているので無視する
func (s *HoldService) releaseSeats(ctx context.Context, h *hold.Hold) {
	var err error
	for attempt := 0; attempt < releaseAttempts; attempt++ {
		err = s.seats.ReleaseSeats(ctx, h.EventID, h.SeatIDs, h.ID)
		if err == nil || errors.Is(err, seat.ErrSeatStale) {
			s.invalidate(ctx, h.EventID)
			return
		}
		if ctx.Err() != nil {
			break
		}
	}
	logger.Error("座席の解放に失敗しました。次のスイープで回収します",
		zap.String("hold_id", h.ID),
		zap.Strings("seat_ids", h.SeatIDs),
		zap.Error(err),
	)
}

type heldKey struct {
	eventID string
	holdID  string
}

// reclaimOrphanedSeats は TTL より長く held のままの座席のうち、
// 保持している仮押さえが expired/released または存在しないものを空席に戻す
// active と committed の仮押さえの座席には触れない
func (s *HoldService) reclaimOrphanedSeats(ctx context.Context, now time.Time) (int, error) {
	held, err := s.seats.ListHeldBefore(ctx, now.Add(-s.cfg.TTL), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	groups := make(map[heldKey][]string)
	for _, se := range held {
		if se.HeldBy == nil {
			continue
		}
		k := heldKey{eventID: se.EventID, holdID: *se.HeldBy}
		groups[k] = append(groups[k], se.ID)
	}

	reclaimed := 0
	for k, ids := range groups {
		h, err := s.holds.GetByID(ctx, k.holdID)
		switch {
		case errors.Is(err, hold.ErrHoldNotFound):
		case err != nil:
			logger.Warn("座席を保持する仮押さえを取得できません", zap.String("hold_id", k.holdID), zap.Error(err))
			continue
		case h.Status == hold.StatusExpired || h.Status == hold.StatusReleased:
		case h.Status == hold.StatusCommitted:
			logger.Error("確定済みの仮押さえの座席が held のままです",
				zap.String("hold_id", h.ID),
				zap.Strings("seat_ids", ids),
			)
			continue
		default:
			continue
		}

		err = s.seats.ReleaseSeats(ctx, k.eventID, ids, k.holdID)
		if err != nil && !errors.Is(err, seat.ErrSeatStale) {
			logger.Error("取り残された座席を戻せませんでした", zap.String("hold_id", k.holdID), zap.Strings("seat_ids", ids), zap.Error(err))
			continue
		}
		if err == nil {
			reclaimed += len(ids)
			s.invalidate(ctx, k.eventID)
			logger.Warn("取り残された座席を空席に戻しました", zap.String("hold_id", k.holdID), zap.Strings("seat_ids", ids))
		}
	}
	return reclaimed, nil
}
