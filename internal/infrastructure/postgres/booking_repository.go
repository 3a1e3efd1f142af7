package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
)

const bookingColumns = `id, hold_id, event_id, seat_ids, owner, amount, payment_id, payment_reference, created_at`

type bookingRow struct {
	ID               string         `db:"id"`
	HoldID           string         `db:"hold_id"`
	EventID          string         `db:"event_id"`
	SeatIDs          pq.StringArray `db:"seat_ids"`
	Owner            string         `db:"owner"`
	Amount           int            `db:"amount"`
	PaymentID        string         `db:"payment_id"`
	PaymentReference string         `db:"payment_reference"`
	CreatedAt        time.Time      `db:"created_at"`
}

func (r *bookingRow) toEntity() *booking.Booking {
	return &booking.Booking{
		ID: r.ID, HoldID: r.HoldID, EventID: r.EventID, SeatIDs: []string(r.SeatIDs),
		Owner: r.Owner, Amount: r.Amount, PaymentID: r.PaymentID,
		PaymentReference: r.PaymentReference, CreatedAt: r.CreatedAt,
	}
}

type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository { return &BookingRepository{db: db} }

func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	query := `INSERT INTO bookings (` + bookingColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.HoldID, b.EventID, pq.Array(b.SeatIDs), b.Owner, b.Amount,
		b.PaymentID, b.PaymentReference, b.CreatedAt)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return booking.ErrBookingAlreadyExists
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) get(ctx context.Context, query string, arg string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *BookingRepository) GetByHoldID(ctx context.Context, holdID string) (*booking.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE hold_id = $1`, holdID)
}

var _ booking.Repository = (*BookingRepository)(nil)
