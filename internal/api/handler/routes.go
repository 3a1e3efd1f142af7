package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-seat-hold-booking/internal/api/middleware"
)

// Routes はルーティングに必要なハンドラーと設定
type Routes struct {
	Holds    *HoldHandler
	Webhooks *PaymentWebhookHandler
	Seats    *SeatHandler
	Health   *HealthHandler

	// WebhookSecret は /internal の JWT 検証に使う。空なら検証しない
	WebhookSecret string
	Metrics       middleware.MetricsConfig
	// MetricsHandler が nil なら /metrics を公開しない
	MetricsHandler http.Handler
}

// Register はルートを登録する
func (r Routes) Register(e *echo.Echo) {
	e.GET("/health", r.Health.Check)
	if r.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(r.MetricsHandler), middleware.MetricsBasicAuth(r.Metrics))
	}

	v1 := e.Group("/api/v1")
	v1.POST("/holds", r.Holds.Create)
	v1.GET("/holds/:id", r.Holds.GetByID)
	v1.DELETE("/holds/:id", r.Holds.Release)
	v1.POST("/holds/:id/extend", r.Holds.Extend)
	v1.POST("/holds/:id/payment-reference", r.Holds.SubmitPaymentReference)

	v1.GET("/events/:event_id/seats/status", r.Seats.GetStatus)
	v1.GET("/events/:event_id/seats/available-count", r.Seats.CountAvailable)

	internal := e.Group("/internal", middleware.WebhookAuth(r.WebhookSecret))
	internal.POST("/payments/:id/verifying", r.Webhooks.Verifying)
	internal.POST("/payments/:id/verified", r.Webhooks.Verified)
	internal.POST("/payments/:id/rejected", r.Webhooks.Rejected)
	internal.PUT("/events/:event_id/seatmap", r.Seats.PutSeatMap)
}
