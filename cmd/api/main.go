package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/api"
	"github.com/sanosuguru/go-seat-hold-booking/internal/api/handler"
	"github.com/sanosuguru/go-seat-hold-booking/internal/api/middleware"
	"github.com/sanosuguru/go-seat-hold-booking/internal/application"
	"github.com/sanosuguru/go-seat-hold-booking/internal/config"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/booking"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
	"github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/catalog"
	"github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/outbox"
	"github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-seat-hold-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/clock"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/tracing"
	"github.com/sanosuguru/go-seat-hold-booking/internal/worker"
)

func main() {
	// .env は任意
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.App.Env, cfg.App.ServiceName)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Fatal("サーバーが異常終了しました", zap.Error(err))
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}

type stores struct {
	seats    seat.Store
	holds    hold.Repository
	payments payment.Repository
	bookings booking.Repository
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.Init()
	health := handler.NewHealthHandler()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	st, db, err := openStores(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		closers = append(closers, func() { _ = db.Close() })
		health.AddCheck("postgres", func(ctx context.Context) error { return postgres.Ping(ctx, db) })
	}

	opts := []application.Option{
		application.WithMetrics(m),
		application.WithTracer(tracing.New(cfg.App.ServiceName)),
	}

	if cfg.Redis.Enabled {
		client, err := redisinfra.Connect(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		closers = append(closers, func() { _ = client.Close() })
		health.AddCheck("redis", func(ctx context.Context) error { return redisinfra.Ping(ctx, client) })
		opts = append(opts,
			application.WithSeatLocker(redisinfra.NewLockManager(client, m)),
			application.WithAvailabilityCache(redisinfra.NewSeatCache(client)),
		)
		logger.Info("Redisに接続しました", zap.String("addr", cfg.Redis.Addr()))
	}

	notifier, err := newNotifier(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	if c, ok := notifier.(interface{ Close() error }); ok {
		closers = append(closers, func() { _ = c.Close() })
	}

	bus := outbox.NewBus()
	worker.NewNotificationDispatcher(notifier).Register(bus)
	opts = append(opts, application.WithPublisher(bus))

	holdService := application.NewHoldService(st.seats, st.holds, cfg.Hold, opts...)
	coordinator := application.NewBookingCoordinator(holdService, st.seats, st.holds, st.bookings, st.payments, opts...)
	reconciler := application.NewPaymentReconciler(st.holds, st.payments, holdService, coordinator, cfg.Payment, opts...)
	seatService := application.NewSeatService(st.seats, opts...)

	if cfg.App.SeatMapFile != "" {
		if err := seedFromFile(ctx, seatService, cfg.App.SeatMapFile); err != nil {
			return err
		}
	}

	bus.Start(ctx)
	sweepers := []*worker.Sweeper{
		worker.NewHoldSweeper(holdService, cfg.Hold.SweepInterval, m),
		worker.NewPaymentTimeoutSweeper(reconciler, cfg.Payment.SweepInterval, m),
	}
	for _, s := range sweepers {
		go s.Start(ctx)
	}

	e := newEcho(cfg, m)
	handler.Routes{
		Holds:          handler.NewHoldHandler(holdService, reconciler),
		Webhooks:       handler.NewPaymentWebhookHandler(reconciler),
		Seats:          handler.NewSeatHandler(seatService),
		Health:         health,
		WebhookSecret:  cfg.Payment.WebhookSecret,
		Metrics:        middleware.LoadMetricsConfig(),
		MetricsHandler: promhttp.Handler(),
	}.Register(e)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("サーバーを起動します",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.App.StoreBackend),
		)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("サーバーをシャットダウンしています...")
	case serveErr = <-errCh:
	}

	// HTTP を止めてからスイープとイベントバスを止める
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}
	for _, s := range sweepers {
		s.Stop()
	}
	bus.Stop(shutdownCtx)
	return serveErr
}

func openStores(cfg *config.Config) (*stores, *sqlx.DB, error) {
	if !cfg.App.UsePostgres() {
		logger.Warn("インメモリストアで起動します。再起動で状態は失われます")
		return &stores{
			seats:    memory.NewSeatStore(clock.Real{}),
			holds:    memory.NewHoldRepository(),
			payments: memory.NewPaymentRepository(),
			bookings: memory.NewBookingRepository(),
		}, nil, nil
	}

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return &stores{
		seats:    postgres.NewSeatStore(db, clock.Real{}),
		holds:    postgres.NewHoldRepository(db),
		payments: postgres.NewPaymentRepository(db),
		bookings: postgres.NewBookingRepository(db),
	}, db, nil
}

func newNotifier(cfg config.RabbitMQConfig) (worker.Notifier, error) {
	if cfg.URL == "" {
		logger.Info("RabbitMQが未設定のため通知はログ出力のみです")
		return worker.NewLogNotifier(), nil
	}
	n, err := rabbitmq.Dial(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("RabbitMQに接続しました",
		zap.String("booking_queue", cfg.BookingQueue),
		zap.String("escalation_queue", cfg.EscalationQueue),
	)
	return n, nil
}

func seedFromFile(ctx context.Context, s *application.SeatService, path string) error {
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	n, err := s.SeedFromCatalog(ctx, cat)
	if err != nil {
		return err
	}
	logger.Info("座席配置ファイルを読み込みました", zap.String("path", path), zap.Int("applied", n))
	return nil
}

func newEcho(cfg *config.Config, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	middleware.SetupMiddleware(e)
	e.Use(middleware.PrometheusMiddleware(m))
	return e
}
