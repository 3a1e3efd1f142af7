package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
)

// WebhookIssuer は決済連携側が発行するトークンの iss
const WebhookIssuer = "payment-gateway"

const webhookSubjectKey = "webhook_subject"

// WebhookAuth は内部コールバックの Bearer トークン（HS256）を検証する
// secret が空の場合は検証しない（ローカル開発用）
func WebhookAuth(secret string) echo.MiddlewareFunc {
	if secret == "" {
		logger.Warn("PAYMENT_WEBHOOK_SECRET が未設定のため内部APIの認証を行いません")
		return passThrough
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(WebhookIssuer),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return []byte(secret), nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが必要です")
			}

			claims := &jwt.RegisteredClaims{}
			if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
				logger.Warn("内部APIのトークン検証に失敗",
					zap.String("path", c.Request().URL.Path),
					zap.Bool("expired", errors.Is(err, jwt.ErrTokenExpired)),
					zap.Error(err),
				)
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが無効です")
			}

			c.Set(webhookSubjectKey, claims.Subject)
			return next(c)
		}
	}
}

// WebhookSubject は検証済みトークンの sub を返す
func WebhookSubject(c echo.Context) string {
	s, _ := c.Get(webhookSubjectKey).(string)
	return s
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
