package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/clock"
)

const seatColumns = `event_id, id, section_id, row_id, label, price, status, held_by, held_at, booked_by, updated_at, version`

type seatRow struct {
	EventID   string     `db:"event_id"`
	ID        string     `db:"id"`
	SectionID string     `db:"section_id"`
	RowID     string     `db:"row_id"`
	Label     string     `db:"label"`
	Price     int        `db:"price"`
	Status    string     `db:"status"`
	HeldBy    *string    `db:"held_by"`
	HeldAt    *time.Time `db:"held_at"`
	BookedBy  *string    `db:"booked_by"`
	UpdatedAt time.Time  `db:"updated_at"`
	Version   int        `db:"version"`
}

func (r *seatRow) toEntity() *seat.Seat {
	return &seat.Seat{
		ID: r.ID, EventID: r.EventID, SectionID: r.SectionID, RowID: r.RowID,
		Label: r.Label, Price: r.Price, Status: seat.Status(r.Status),
		HeldBy: r.HeldBy, HeldAt: r.HeldAt, BookedBy: r.BookedBy,
		UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

// SeatStore はPostgreSQLの座席ストア
// 複数座席に触れる遷移は SELECT ... FOR UPDATE で座席ID昇順に行ロックを取ってから行う
type SeatStore struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewSeatStore(db *sqlx.DB, c clock.Clock) *SeatStore {
	if c == nil {
		c = clock.Real{}
	}
	return &SeatStore{db: db, clock: c}
}

// lockSeats は座席行をロックして返す
func lockSeats(ctx context.Context, tx *sqlx.Tx, eventID string, ids []string) ([]seatRow, error) {
	var rows []seatRow
	query := `SELECT ` + seatColumns + ` FROM seats WHERE event_id = $1 AND id = ANY($2) ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &rows, query, eventID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("座席ロックに失敗: %w", err)
	}
	return rows, nil
}

func (s *SeatStore) ClaimSeats(ctx context.Context, eventID string, seatIDs []string, holdID string) error {
	ids := seat.NormalizeIDs(seatIDs)
	if len(ids) == 0 {
		return seat.ErrSeatIDsRequired
	}

	return inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		rows, err := lockSeats(ctx, tx, eventID, ids)
		if err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return seat.ErrSeatNotFound
		}
		for _, r := range rows {
			if seat.Status(r.Status) != seat.StatusAvailable {
				return seat.ErrSeatConflict
			}
		}

		query := `UPDATE seats SET status = 'held', held_by = $3, held_at = $4, updated_at = $4, version = version + 1
			WHERE event_id = $1 AND id = ANY($2) AND status = 'available'`
		result, err := tx.ExecContext(ctx, query, eventID, pq.Array(ids), holdID, s.clock.Now())
		if err != nil {
			return fmt.Errorf("座席の仮押さえに失敗: %w", err)
		}
		if n, _ := result.RowsAffected(); int(n) != len(ids) {
			return seat.ErrSeatConflict
		}
		return nil
	})
}

func (s *SeatStore) ReleaseSeats(ctx context.Context, eventID string, seatIDs []string, holdID string) error {
	ids := seat.NormalizeIDs(seatIDs)
	query := `UPDATE seats SET status = 'available', held_by = NULL, held_at = NULL, updated_at = $4, version = version + 1
		WHERE event_id = $1 AND id = ANY($2) AND status = 'held' AND held_by = $3`
	result, err := s.db.ExecContext(ctx, query, eventID, pq.Array(ids), holdID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("座席の解放に失敗: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return seat.ErrSeatStale
	}
	return nil
}

func (s *SeatStore) CommitSeats(ctx context.Context, eventID string, seatIDs []string, holdID, bookingID string) error {
	ids := seat.NormalizeIDs(seatIDs)
	if len(ids) == 0 {
		return seat.ErrSeatIDsRequired
	}

	return inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		rows, err := lockSeats(ctx, tx, eventID, ids)
		if err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return seat.ErrSeatStale
		}
		for _, r := range rows {
			if !r.toEntity().IsHeldBy(holdID) {
				return seat.ErrSeatStale
			}
		}

		query := `UPDATE seats SET status = 'booked', held_by = NULL, held_at = NULL, booked_by = $4, updated_at = $5, version = version + 1
			WHERE event_id = $1 AND id = ANY($2) AND status = 'held' AND held_by = $3`
		result, err := tx.ExecContext(ctx, query, eventID, pq.Array(ids), holdID, bookingID, s.clock.Now())
		if err != nil {
			return fmt.Errorf("座席の確定に失敗: %w", err)
		}
		if n, _ := result.RowsAffected(); int(n) != len(ids) {
			return seat.ErrSeatStale
		}
		return nil
	})
}

func (s *SeatStore) GetStatus(ctx context.Context, eventID string, seatIDs []string) (map[string]seat.Status, error) {
	ids := seat.NormalizeIDs(seatIDs)
	var rows []struct {
		ID     string `db:"id"`
		Status string `db:"status"`
	}
	query := `SELECT id, status FROM seats WHERE event_id = $1 AND id = ANY($2)`
	if err := s.db.SelectContext(ctx, &rows, query, eventID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("座席状態の取得に失敗: %w", err)
	}
	result := make(map[string]seat.Status, len(rows))
	for _, r := range rows {
		result[r.ID] = seat.Status(r.Status)
	}
	return result, nil
}

func (s *SeatStore) GetSeats(ctx context.Context, eventID string, seatIDs []string) ([]*seat.Seat, error) {
	ids := seat.NormalizeIDs(seatIDs)
	var rows []seatRow
	query := `SELECT ` + seatColumns + ` FROM seats WHERE event_id = $1 AND id = ANY($2) ORDER BY id`
	if err := s.db.SelectContext(ctx, &rows, query, eventID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	if len(rows) != len(ids) {
		return nil, seat.ErrSeatNotFound
	}
	seats := make([]*seat.Seat, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seats, nil
}

func (s *SeatStore) CountAvailable(ctx context.Context, eventID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM seats WHERE event_id = $1 AND status = 'available'`, eventID)
	if err != nil {
		return 0, fmt.Errorf("空席数の取得に失敗: %w", err)
	}
	return count, nil
}

func (s *SeatStore) ListHeldBefore(ctx context.Context, heldBefore time.Time, limit int) ([]*seat.Seat, error) {
	var rows []seatRow
	query := `SELECT ` + seatColumns + ` FROM seats WHERE status = 'held' AND held_at <= $1 ORDER BY held_at LIMIT $2`
	if err := s.db.SelectContext(ctx, &rows, query, heldBefore, limit); err != nil {
		return nil, fmt.Errorf("仮押さえ中の座席取得に失敗: %w", err)
	}
	seats := make([]*seat.Seat, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seats, nil
}

// Seed は座席配置を登録する
// 既存の座席は available か blocked の場合のみ配置と価格を更新する
func (s *SeatStore) Seed(ctx context.Context, seats []*seat.Seat) (int, error) {
	for _, se := range seats {
		if err := se.Validate(); err != nil {
			return 0, err
		}
	}

	query := `INSERT INTO seats (` + seatColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL, NULL, $8, 1)
		ON CONFLICT (event_id, id) DO UPDATE SET
			section_id = EXCLUDED.section_id,
			row_id = EXCLUDED.row_id,
			label = EXCLUDED.label,
			price = EXCLUDED.price,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			version = seats.version + 1
		WHERE seats.status IN ('available', 'blocked')`

	applied := 0
	now := s.clock.Now()
	err := inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, se := range seats {
			status := seat.StatusAvailable
			if se.Status == seat.StatusBlocked {
				status = seat.StatusBlocked
			}
			result, err := tx.ExecContext(ctx, query,
				se.EventID, se.ID, se.SectionID, se.RowID, se.Label, se.Price, string(status), now)
			if err != nil {
				return fmt.Errorf("座席 %s の登録に失敗: %w", se.ID, err)
			}
			if n, _ := result.RowsAffected(); n > 0 {
				applied++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

var _ seat.Store = (*SeatStore)(nil)
