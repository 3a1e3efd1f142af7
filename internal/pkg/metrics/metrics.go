package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 仮押さえ作成の試行数（status: success, conflict, lock_failed, error）
	HoldsTotal *prometheus.CounterVec

	// 確定処理の結果（status: committed, hold_expired, already_committed, error）
	BookingsTotal *prometheus.CounterVec

	// 支払いの終端遷移（status: verified, rejected, expired）
	PaymentsTotal *prometheus.CounterVec

	// スイープで期限切れにした仮押さえの数
	HoldsExpiredTotal prometheus.Counter

	// 期限切れ後に支払いが確認された件数（要手動対応）
	PaymentEscalationsTotal prometheus.Counter

	// スイープ1回あたりの処理時間（sweep: holds, payments）
	SweepDuration *prometheus.HistogramVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// アクティブな仮押さえ数
	ActiveHolds prometheus.Gauge
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HoldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holds_total",
				Help: "Total number of seat hold attempts",
			},
			[]string{"status"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking commit attempts",
			},
			[]string{"status"},
		),
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_total",
				Help: "Total number of payment terminal transitions",
			},
			[]string{"status"},
		),
		HoldsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "holds_expired_total",
				Help: "Total number of holds expired by the sweep",
			},
		),
		PaymentEscalationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "payment_escalations_total",
				Help: "Payments verified after their hold was lost",
			},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_duration_seconds",
				Help:    "Time spent in one sweep pass",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"sweep"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		ActiveHolds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_holds",
				Help: "Current number of active seat holds",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HoldsTotal,
		m.BookingsTotal,
		m.PaymentsTotal,
		m.HoldsExpiredTotal,
		m.PaymentEscalationsTotal,
		m.SweepDuration,
		m.DistributedLockDuration,
		m.ActiveHolds,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}

// 以下のヘルパーは m が nil のとき何もしない

func (m *Metrics) IncHold(status string) {
	if m == nil {
		return
	}
	m.HoldsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncBooking(status string) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncPayment(status string) {
	if m == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddHoldsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.HoldsExpiredTotal.Add(float64(n))
}

func (m *Metrics) IncEscalation() {
	if m == nil {
		return
	}
	m.PaymentEscalationsTotal.Inc()
}

func (m *Metrics) ObserveSweep(sweep string, d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.WithLabelValues(sweep).Observe(d.Seconds())
}

func (m *Metrics) ObserveLock(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

func (m *Metrics) SetActiveHolds(n int) {
	if m == nil {
		return
	}
	m.ActiveHolds.Set(float64(n))
}
