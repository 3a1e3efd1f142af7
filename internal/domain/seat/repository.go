package seat

import (
	"context"
	"time"
)

// Store は座席状態の唯一の情報源
// 状態遷移はすべて現在の状態と保持者を条件にした比較交換で行う
type Store interface {
	// ClaimSeats は全座席を available から held に遷移する（全部か無しか）
	// 1席でも空いていなければ ErrSeatConflict を返し、どの座席も変更しない
	ClaimSeats(ctx context.Context, eventID string, seatIDs []string, holdID string) error

	// ReleaseSeats は holdID が保持している座席のみ available に戻す
	// 1席も保持していなければ ErrSeatStale を返す
	ReleaseSeats(ctx context.Context, eventID string, seatIDs []string, holdID string) error

	// CommitSeats は holdID が保持している全座席を booked にする（全部か無しか）
	CommitSeats(ctx context.Context, eventID string, seatIDs []string, holdID, bookingID string) error

	// GetStatus は座席状態のスナップショットを返す
	GetStatus(ctx context.Context, eventID string, seatIDs []string) (map[string]Status, error)

	// GetSeats は座席のスナップショットを返す
	GetSeats(ctx context.Context, eventID string, seatIDs []string) ([]*Seat, error)

	// CountAvailable はイベントの空席数を返す
	CountAvailable(ctx context.Context, eventID string) (int, error)

	// ListHeldBefore は heldBefore 以前から held のままの座席を古い順に返す
	// 仮押さえが終わったのに戻っていない座席の回収に使う
	ListHeldBefore(ctx context.Context, heldBefore time.Time, limit int) ([]*Seat, error)

	// Seed は座席配置を登録する（held/booked の座席は上書きしない）
	Seed(ctx context.Context, seats []*Seat) (int, error)
}
