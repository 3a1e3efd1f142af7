package hold

import (
	"context"
	"time"
)

// Repository は仮押さえリポジトリのインターフェース
type Repository interface {
	// Create は新しい仮押さえを保存する
	Create(ctx context.Context, h *Hold) error

	// GetByID はIDから仮押さえを取得する
	GetByID(ctx context.Context, id string) (*Hold, error)

	// GetActiveByIdempotencyKey は所有者と冪等性キーからアクティブな仮押さえを取得する
	GetActiveByIdempotencyKey(ctx context.Context, owner, key string) (*Hold, error)

	// Update は expectedVersion と保存済みの Version が一致する場合のみ保存する
	// 一致しない場合は ErrVersionConflict を返す
	Update(ctx context.Context, h *Hold, expectedVersion int) error

	// ListExpiredActive は now 時点で期限切れのアクティブな仮押さえを返す
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*Hold, error)

	// CountActive はアクティブな仮押さえ数を返す
	CountActive(ctx context.Context) (int, error)
}
