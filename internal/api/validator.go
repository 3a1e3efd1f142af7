package api

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// KindValidationFailed は入力検証エラーの種別
const KindValidationFailed = "ValidationFailed"

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

var _ echo.Validator = (*CustomValidator)(nil)

// NewValidator は新しいバリデーターを作成する
func NewValidator() *CustomValidator {
	v := validator.New()
	// 座席IDは英数字とハイフンのみ
	_ = v.RegisterValidation("seatid", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" || len(s) > 32 {
			return false
		}
		return strings.Trim(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-") == ""
	})
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return NewHTTPError(http.StatusBadRequest, KindValidationFailed, err.Error())
	}
	return nil
}
