package event

import "context"

// Catalog はイベント座席配置の提供元（外部カタログ）
type Catalog interface {
	// ListSeatMaps は登録済みの座席配置をすべて返す
	ListSeatMaps(ctx context.Context) ([]*SeatMap, error)

	// GetSeatMap はイベントの座席配置を返す
	GetSeatMap(ctx context.Context, eventID string) (*SeatMap, error)
}
