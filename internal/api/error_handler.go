package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-hold-booking/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
// Kind はクライアントが分岐に使う機械可読な種別（SeatsUnavailable など）
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// NewHTTPError は種別付きの HTTPError を作成する
func NewHTTPError(code int, kind, message string) *echo.HTTPError {
	return echo.NewHTTPError(code, ErrorResponse{Error: message, Code: code, Kind: kind})
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := ErrorResponse{
		Error: "内部サーバーエラー",
		Code:  http.StatusInternalServerError,
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		resp.Code = he.Code
		switch m := he.Message.(type) {
		case ErrorResponse:
			resp = m
			resp.Code = he.Code
		case string:
			resp.Error = m
		default:
			resp.Error = http.StatusText(he.Code)
		}
	}

	// 5xx のみログに残す。内部エラーの詳細はレスポンスに含めない
	if resp.Code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", resp.Code),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(resp.Code)
	} else {
		err = c.JSON(resp.Code, resp)
	}
	if err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
