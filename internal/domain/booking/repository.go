package booking

import "context"

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は予約を保存する（仮押さえIDが重複する場合は ErrBookingAlreadyExists）
	Create(ctx context.Context, b *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByHoldID は仮押さえIDから予約を取得する
	GetByHoldID(ctx context.Context, holdID string) (*Booking, error)
}
