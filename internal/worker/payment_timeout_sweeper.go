package worker

import (
	"context"
	"time"

	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/metrics"
)

// PaymentExpirer は検証が終わらない支払いを失効させる
type PaymentExpirer interface {
	ExpireStalePayments(ctx context.Context) (int, error)
}

// NewPaymentTimeoutSweeper は検証タイムアウトを処理するワーカーを作成する
func NewPaymentTimeoutSweeper(p PaymentExpirer, interval time.Duration, m *metrics.Metrics) *Sweeper {
	return newSweeper("payment_timeout", p.ExpireStalePayments, interval, m)
}
