package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
)

const paymentColumns = `id, hold_id, reference, status, reason, needs_review, submitted_at, verifying_at, resolved_at, updated_at, version`

// 未確定の支払いは仮押さえごとに1件まで
const openPaymentConstraint = "uq_payments_open_hold"

type paymentRow struct {
	ID          string     `db:"id"`
	HoldID      string     `db:"hold_id"`
	Reference   string     `db:"reference"`
	Status      string     `db:"status"`
	Reason      string     `db:"reason"`
	NeedsReview bool       `db:"needs_review"`
	SubmittedAt time.Time  `db:"submitted_at"`
	VerifyingAt *time.Time `db:"verifying_at"`
	ResolvedAt  *time.Time `db:"resolved_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	Version     int        `db:"version"`
}

func (r *paymentRow) toEntity() *payment.Payment {
	return &payment.Payment{
		ID: r.ID, HoldID: r.HoldID, Reference: r.Reference, Status: payment.Status(r.Status),
		Reason: r.Reason, NeedsReview: r.NeedsReview, SubmittedAt: r.SubmittedAt,
		VerifyingAt: r.VerifyingAt, ResolvedAt: r.ResolvedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

type PaymentRepository struct{ db *sqlx.DB }

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository { return &PaymentRepository{db: db} }

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.HoldID, p.Reference, string(p.Status), p.Reason, p.NeedsReview,
		p.SubmittedAt, p.VerifyingAt, p.ResolvedAt, p.UpdatedAt, p.Version)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			if constraint == openPaymentConstraint {
				return payment.ErrPaymentInProgress
			}
			return payment.ErrPaymentAlreadyExists
		}
		return fmt.Errorf("支払い作成に失敗: %w", err)
	}
	return nil
}

func (r *PaymentRepository) get(ctx context.Context, query string, args ...any) (*payment.Payment, error) {
	var row paymentRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("支払い取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *PaymentRepository) GetOpenByHoldID(ctx context.Context, holdID string) (*payment.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE hold_id = $1 AND status IN ('pending', 'verifying')`, holdID)
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment, expectedVersion int) error {
	query := `UPDATE payments SET status = $3, reason = $4, needs_review = $5, verifying_at = $6,
		resolved_at = $7, updated_at = $8, version = $9
		WHERE id = $1 AND version = $2`
	result, err := r.db.ExecContext(ctx, query,
		p.ID, expectedVersion, string(p.Status), p.Reason, p.NeedsReview,
		p.VerifyingAt, p.ResolvedAt, p.UpdatedAt, p.Version)
	if err != nil {
		return fmt.Errorf("支払い更新に失敗: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, p.ID); err != nil {
			return err
		}
		return payment.ErrVersionConflict
	}
	return nil
}

func (r *PaymentRepository) ListStale(ctx context.Context, submittedBefore time.Time, limit int) ([]*payment.Payment, error) {
	var rows []paymentRow
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status IN ('pending', 'verifying') AND submitted_at <= $1
		ORDER BY submitted_at LIMIT NULLIF($2, 0)`
	if err := r.db.SelectContext(ctx, &rows, query, submittedBefore, limit); err != nil {
		return nil, fmt.Errorf("滞留中の支払いの取得に失敗: %w", err)
	}
	payments := make([]*payment.Payment, len(rows))
	for i := range rows {
		payments[i] = rows[i].toEntity()
	}
	return payments, nil
}

var _ payment.Repository = (*PaymentRepository)(nil)
