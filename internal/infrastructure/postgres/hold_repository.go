package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
)

const holdColumns = `id, event_id, seat_ids, owner, idempotency_key, amount, status, extended, payment_id, booking_id, created_at, expires_at, updated_at, version`

type holdRow struct {
	ID             string         `db:"id"`
	EventID        string         `db:"event_id"`
	SeatIDs        pq.StringArray `db:"seat_ids"`
	Owner          string         `db:"owner"`
	IdempotencyKey string         `db:"idempotency_key"`
	Amount         int            `db:"amount"`
	Status         string         `db:"status"`
	Extended       bool           `db:"extended"`
	PaymentID      *string        `db:"payment_id"`
	BookingID      *string        `db:"booking_id"`
	CreatedAt      time.Time      `db:"created_at"`
	ExpiresAt      time.Time      `db:"expires_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	Version        int            `db:"version"`
}

func (r *holdRow) toEntity() *hold.Hold {
	return &hold.Hold{
		ID: r.ID, EventID: r.EventID, SeatIDs: []string(r.SeatIDs), Owner: r.Owner,
		IdempotencyKey: r.IdempotencyKey, Amount: r.Amount, Status: hold.Status(r.Status),
		Extended: r.Extended, PaymentID: r.PaymentID, BookingID: r.BookingID,
		CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

type HoldRepository struct{ db *sqlx.DB }

func NewHoldRepository(db *sqlx.DB) *HoldRepository { return &HoldRepository{db: db} }

func (r *HoldRepository) Create(ctx context.Context, h *hold.Hold) error {
	query := `INSERT INTO holds (` + holdColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.ExecContext(ctx, query,
		h.ID, h.EventID, pq.Array(h.SeatIDs), h.Owner, h.IdempotencyKey, h.Amount, string(h.Status),
		h.Extended, h.PaymentID, h.BookingID, h.CreatedAt, h.ExpiresAt, h.UpdatedAt, h.Version)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return hold.ErrHoldAlreadyExists
		}
		return fmt.Errorf("仮押さえ作成に失敗: %w", err)
	}
	return nil
}

func (r *HoldRepository) get(ctx context.Context, query string, args ...any) (*hold.Hold, error) {
	var row holdRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hold.ErrHoldNotFound
		}
		return nil, fmt.Errorf("仮押さえ取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *HoldRepository) GetByID(ctx context.Context, id string) (*hold.Hold, error) {
	return r.get(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = $1`, id)
}

func (r *HoldRepository) GetActiveByIdempotencyKey(ctx context.Context, owner, key string) (*hold.Hold, error) {
	if key == "" {
		return nil, hold.ErrHoldNotFound
	}
	return r.get(ctx, `SELECT `+holdColumns+` FROM holds WHERE owner = $1 AND idempotency_key = $2 AND status = 'active'`, owner, key)
}

// Update は version 列を条件にした UPDATE で仮押さえを保存する
func (r *HoldRepository) Update(ctx context.Context, h *hold.Hold, expectedVersion int) error {
	query := `UPDATE holds SET status = $3, extended = $4, payment_id = $5, booking_id = $6,
		expires_at = $7, updated_at = $8, version = $9
		WHERE id = $1 AND version = $2`
	result, err := r.db.ExecContext(ctx, query,
		h.ID, expectedVersion, string(h.Status), h.Extended, h.PaymentID, h.BookingID,
		h.ExpiresAt, h.UpdatedAt, h.Version)
	if err != nil {
		return fmt.Errorf("仮押さえ更新に失敗: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, h.ID); err != nil {
			return err
		}
		return hold.ErrVersionConflict
	}
	return nil
}

func (r *HoldRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*hold.Hold, error) {
	var rows []holdRow
	query := `SELECT ` + holdColumns + ` FROM holds WHERE status = 'active' AND expires_at <= $1 ORDER BY expires_at LIMIT NULLIF($2, 0)`
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("期限切れ仮押さえの取得に失敗: %w", err)
	}
	holds := make([]*hold.Hold, len(rows))
	for i := range rows {
		holds[i] = rows[i].toEntity()
	}
	return holds, nil
}

func (r *HoldRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM holds WHERE status = 'active'`); err != nil {
		return 0, fmt.Errorf("アクティブな仮押さえ数の取得に失敗: %w", err)
	}
	return count, nil
}

var _ hold.Repository = (*HoldRepository)(nil)
