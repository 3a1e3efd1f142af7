package payment

import (
	"context"
	"time"
)

// Repository は支払いリポジトリのインターフェース
type Repository interface {
	Create(ctx context.Context, p *Payment) error

	GetByID(ctx context.Context, id string) (*Payment, error)

	// GetOpenByHoldID は仮押さえに紐づく未確定の支払いを取得する
	GetOpenByHoldID(ctx context.Context, holdID string) (*Payment, error)

	// Update は expectedVersion が一致する場合のみ保存する
	Update(ctx context.Context, p *Payment, expectedVersion int) error

	// ListStale は submittedBefore 以前に提出された未確定の支払いを返す
	ListStale(ctx context.Context, submittedBefore time.Time, limit int) ([]*Payment, error)
}
