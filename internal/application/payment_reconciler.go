package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/config"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/tracing"
)

// PaymentReconciler は送金参照番号の提出と外部からの検証結果を仮押さえに反映する
// 検証結果のコールバックは何度届いてもよい
type PaymentReconciler struct {
	holds       hold.Repository
	payments    payment.Repository
	holdService *HoldService
	coordinator *BookingCoordinator
	cfg         config.PaymentConfig
	deps
}

func NewPaymentReconciler(holds hold.Repository, payments payment.Repository, hs *HoldService, bc *BookingCoordinator, cfg config.PaymentConfig, opts ...Option) *PaymentReconciler {
	if cfg.VerificationTimeout <= 0 {
		cfg.VerificationTimeout = 30 * time.Minute
	}
	return &PaymentReconciler{
		holds:       holds,
		payments:    payments,
		holdService: hs,
		coordinator: bc,
		cfg:         cfg,
		deps:        newDeps(opts),
	}
}

// SubmitReference は仮押さえに送金参照番号を紐付ける
// 同じ参照番号の再提出は既存の支払いを返す
func (r *PaymentReconciler) SubmitReference(ctx context.Context, holdID, reference string) (p *payment.Payment, err error) {
	ctx, span := r.tracer.Start(ctx, "PaymentReconciler.SubmitReference", attribute.String("hold_id", holdID))
	defer func() { tracing.End(span, err) }()

	if err := payment.ValidateReference(reference); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		h, err := r.holds.GetByID(ctx, holdID)
		if err != nil {
			return nil, err
		}
		now := r.clock.Now()
		if !h.CanCommitAt(now) {
			return nil, hold.ErrHoldNotActive
		}

		if h.PaymentID != nil {
			cur, err := r.payments.GetByID(ctx, *h.PaymentID)
			switch {
			case err == nil && !cur.Status.IsTerminal():
				if cur.Reference == reference {
					return cur, nil
				}
				return nil, payment.ErrPaymentInProgress
			case err != nil && !errors.Is(err, payment.ErrPaymentNotFound):
				return nil, fmt.Errorf("支払い取得に失敗: %w", err)
			}
		}

		p = payment.NewPayment(r.ids.NewID(), h.ID, reference, now)
		previous := h.PaymentID
		prev := h.Version
		if err := h.AttachPayment(p.ID, now); err != nil {
			return nil, err
		}
		err = r.holds.Update(ctx, h, prev)
		if errors.Is(err, hold.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("仮押さえの更新に失敗: %w", err)
		}
		if err := r.payments.Create(ctx, p); err != nil {
			r.detachPayment(ctx, h.ID, p.ID, previous)
			return nil, fmt.Errorf("支払いの保存に失敗: %w", err)
		}

		logger.Info("送金参照番号を受け付けました",
			zap.String("payment_id", p.ID),
			zap.String("hold_id", h.ID),
		)
		return p, nil
	}
	return nil, hold.ErrVersionConflict
}

// detachPayment は保存できなかった支払いの紐付けを仮押さえから外す
func (r *PaymentReconciler) detachPayment(ctx context.Context, holdID, paymentID string, previous *string) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		h, err := r.holds.GetByID(ctx, holdID)
		if err != nil {
			break
		}
		prev := h.Version
		if !h.DetachPayment(paymentID, previous, r.clock.Now()) {
			return
		}
		err = r.holds.Update(ctx, h, prev)
		if errors.Is(err, hold.ErrVersionConflict) {
			continue
		}
		if err == nil {
			return
		}
		break
	}
	logger.Warn("仮押さえから支払いの紐付けを外せませんでした",
		zap.String("hold_id", holdID),
		zap.String("payment_id", paymentID),
	)
}

func (r *PaymentReconciler) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	return r.payments.GetByID(ctx, id)
}

// MarkVerifying は外部で検証が始まったことを記録する
// 仮押さえの残り時間が ExtendWithin 以下なら一度だけ延長する
func (r *PaymentReconciler) MarkVerifying(ctx context.Context, paymentID string) (p *payment.Payment, err error) {
	ctx, span := r.tracer.Start(ctx, "PaymentReconciler.MarkVerifying", attribute.String("payment_id", paymentID))
	defer func() { tracing.End(span, err) }()

	p, _, err = r.transition(ctx, paymentID, func(p *payment.Payment, now time.Time) error {
		return p.MarkVerifying(now)
	})
	if errors.Is(err, payment.ErrAlreadyVerifying) || errors.Is(err, payment.ErrPaymentAlreadyResolved) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}

	h, err := r.holds.GetByID(ctx, p.HoldID)
	if err != nil {
		logger.Warn("検証中の支払いの仮押さえを取得できません", zap.String("payment_id", p.ID), zap.Error(err))
		return p, nil
	}
	now := r.clock.Now()
	if h.CanCommitAt(now) && !h.Extended && h.ExpiresAt.Sub(now) <= r.cfg.ExtendWithin {
		if _, err := r.holdService.ExtendHold(ctx, h.ID); err != nil {
			logger.Warn("検証中の仮押さえを延長できませんでした", zap.String("hold_id", h.ID), zap.Error(err))
		}
	}
	return p, nil
}

// OnVerified は検証済みの支払いで仮押さえを確定する
// 支払いが既に終端なら何もしない
// 仮押さえが先に失効していた場合は、支払いを要確認として記録し ErrHoldExpired を返す
func (r *PaymentReconciler) OnVerified(ctx context.Context, paymentID string) (b *booking.Booking, err error) {
	ctx, span := r.tracer.Start(ctx, "PaymentReconciler.OnVerified", attribute.String("payment_id", paymentID))
	defer func() { tracing.End(span, err) }()

	p, err := r.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return nil, nil
	}

	b, cerr := r.coordinator.Commit(ctx, p.HoldID, p.ID)
	switch {
	case cerr == nil:
		resolved, changed, err := r.transition(ctx, p.ID, func(p *payment.Payment, now time.Time) error {
			return p.Verify(now, false)
		})
		if err != nil && !errors.Is(err, payment.ErrPaymentAlreadyResolved) {
			return b, fmt.Errorf("支払いの更新に失敗: %w", err)
		}
		if changed {
			r.metrics.IncPayment(string(payment.StatusVerified))
		} else if resolved != nil && resolved.Status != payment.StatusVerified {
			logger.Error("予約確定と同時に支払いが終了しました",
				zap.String("payment_id", p.ID),
				zap.String("booking_id", b.ID),
				zap.String("payment_status", string(resolved.Status)),
			)
		}
		return b, nil

	case errors.Is(cerr, ErrAlreadyCommitted):
		if b != nil && b.PaymentID != "" && b.PaymentID != p.ID {
			// 別の支払いで確定済み。この入金には座席がない
			return nil, r.escalate(ctx, p.ID, hold.ErrHoldNotActive)
		}
		return b, nil

	case errors.Is(cerr, hold.ErrHoldExpired):
		return nil, r.escalate(ctx, p.ID, hold.ErrHoldExpired)

	case errors.Is(cerr, ErrPaymentMismatch):
		return nil, r.escalate(ctx, p.ID, ErrPaymentMismatch)

	case errors.Is(cerr, ErrPaymentFailed):
		// 検証結果より先に拒否かタイムアウトが確定している
		logger.Warn("終了済みの支払いに検証結果が届きました", zap.String("payment_id", p.ID))
		return nil, nil
	}
	// 内部エラー。支払いは verifying/pending のまま残し、再送かタイムアウトに任せる
	return nil, cerr
}

// escalate は入金確認済みで座席を確保できなかった支払いを記録する
// 座席は戻さない。返金は運用者が対応する
func (r *PaymentReconciler) escalate(ctx context.Context, paymentID string, cause error) error {
	p, changed, err := r.transition(ctx, paymentID, func(p *payment.Payment, now time.Time) error {
		return p.Verify(now, true)
	})
	if err != nil && !errors.Is(err, payment.ErrPaymentAlreadyResolved) {
		return fmt.Errorf("支払いの更新に失敗: %w", err)
	}
	if !changed {
		return cause
	}

	now := r.clock.Now()
	ev := payment.EscalatedEvent{
		PaymentID:  p.ID,
		HoldID:     p.HoldID,
		Reference:  p.Reference,
		DetectedAt: now,
	}
	if h, err := r.holds.GetByID(ctx, p.HoldID); err == nil {
		ev.EventID = h.EventID
		ev.SeatIDs = append([]string(nil), h.SeatIDs...)
		ev.Owner = h.Owner
		ev.Amount = h.Amount
	}

	r.metrics.IncPayment(string(payment.StatusVerified))
	r.metrics.IncEscalation()
	logger.Error("仮押さえの失効後に入金が確認されました。手動対応が必要です",
		zap.String("payment_id", p.ID),
		zap.String("hold_id", p.HoldID),
		zap.String("reference", p.Reference),
		zap.Strings("seat_ids", ev.SeatIDs),
		zap.Int("amount", ev.Amount),
		zap.NamedError("cause", cause),
	)
	r.publish(ctx, ev)
	return cause
}

// OnRejectedOrTimeout は支払いを拒否またはタイムアウトとして終了し、仮押さえを解放する
// reason が verification_timeout で検証が始まっていなければ expired にする
func (r *PaymentReconciler) OnRejectedOrTimeout(ctx context.Context, paymentID, reason string) (err error) {
	ctx, span := r.tracer.Start(ctx, "PaymentReconciler.OnRejectedOrTimeout",
		attribute.String("payment_id", paymentID),
		attribute.String("reason", reason),
	)
	defer func() { tracing.End(span, err) }()

	_, err = r.rejectOrTimeout(ctx, paymentID, reason)
	return err
}

func (r *PaymentReconciler) rejectOrTimeout(ctx context.Context, paymentID, reason string) (bool, error) {
	if reason == "" {
		reason = payment.ReasonRejected
	}
	p, changed, err := r.transition(ctx, paymentID, func(p *payment.Payment, now time.Time) error {
		if reason == payment.ReasonTimeout && p.Status == payment.StatusPending {
			return p.Expire(reason, now)
		}
		return p.Reject(reason, now)
	})
	if errors.Is(err, payment.ErrPaymentAlreadyResolved) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	r.metrics.IncPayment(string(p.Status))
	logger.Info("支払いを終了しました",
		zap.String("payment_id", p.ID),
		zap.String("status", string(p.Status)),
		zap.String("reason", reason),
	)
	if err := r.holdService.ReleaseHold(ctx, p.HoldID); err != nil && !errors.Is(err, hold.ErrHoldNotFound) {
		return true, fmt.Errorf("仮押さえの解放に失敗: %w", err)
	}
	return true, nil
}

// ExpireStalePayments は検証待ちのまま VerificationTimeout を超えた支払いを終了する
func (r *PaymentReconciler) ExpireStalePayments(ctx context.Context) (n int, err error) {
	ctx, span := r.tracer.Start(ctx, "PaymentReconciler.ExpireStalePayments")
	defer func() {
		span.SetAttributes(attribute.Int("timed_out", n))
		tracing.End(span, err)
	}()

	cutoff := r.clock.Now().Add(-r.cfg.VerificationTimeout)
	stale, err := r.payments.ListStale(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("タイムアウトした支払いの取得に失敗: %w", err)
	}
	for _, p := range stale {
		changed, err := r.rejectOrTimeout(ctx, p.ID, payment.ReasonTimeout)
		if err != nil {
			logger.Error("支払いのタイムアウト処理に失敗しました", zap.String("payment_id", p.ID), zap.Error(err))
			continue
		}
		if changed {
			n++
		}
	}
	return n, nil
}

// transition は支払いを読み直しながら fn を適用して CAS で保存する
// fn がエラーを返した場合は保存せず、そのときの支払いとエラーを返す
func (r *PaymentReconciler) transition(ctx context.Context, paymentID string, fn func(*payment.Payment, time.Time) error) (*payment.Payment, bool, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		p, err := r.payments.GetByID(ctx, paymentID)
		if err != nil {
			return nil, false, err
		}
		prev := p.Version
		if err := fn(p, r.clock.Now()); err != nil {
			return p, false, err
		}
		err = r.payments.Update(ctx, p, prev)
		if errors.Is(err, payment.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
	return nil, false, payment.ErrVersionConflict
}
