package worker

import (
	"context"
	"time"

	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/metrics"
)

// HoldExpirer は期限切れの仮押さえを失効させる
type HoldExpirer interface {
	ExpireDueHolds(ctx context.Context) (int, error)
}

// NewHoldSweeper は期限切れの仮押さえを座席ごと解放するワーカーを作成する
// interval が仮押さえの期限から座席が空くまでの最大遅延になる
func NewHoldSweeper(h HoldExpirer, interval time.Duration, m *metrics.Metrics) *Sweeper {
	return newSweeper("hold_expiry", h.ExpireDueHolds, interval, m)
}
