package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/metrics"
)

// sweepFunc は一回分のスイープを実行し、処理件数を返す
type sweepFunc func(ctx context.Context) (int, error)

// Sweeper は一定間隔でスイープを実行するワーカー
type Sweeper struct {
	name     string
	sweep    sweepFunc
	interval time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// defaultSweepInterval は interval が0以下のときに使う間隔
const defaultSweepInterval = 5 * time.Second

func newSweeper(name string, fn sweepFunc, interval time.Duration, m *metrics.Metrics) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		name:     name,
		sweep:    fn,
		interval: interval,
		metrics:  m,
		log:      logger.Component("worker").With(zap.String("sweep", name)),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はスイープを開始し、停止するまでブロックする
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info("スイープ開始", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("スイープ停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			s.log.Info("スイープ停止（シグナル受信）")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop はスイープを停止し、実行中の処理の終了を待つ
// Start 済みであること
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// RunOnce は一回分のスイープを実行する
// 失敗しても次の周期で再試行する
func (s *Sweeper) RunOnce(ctx context.Context) int {
	start := time.Now()
	count, err := s.sweep(ctx)
	s.metrics.ObserveSweep(s.name, time.Since(start))
	if err != nil {
		s.log.Error("スイープ失敗", zap.Error(err))
		return count
	}

	if count > 0 {
		s.log.Info("スイープ完了", zap.Int("count", count))
	} else {
		s.log.Debug("対象なし")
	}
	return count
}
