package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound      = errors.New("予約が見つかりません")
	ErrBookingAlreadyExists = errors.New("この仮押さえの予約は既に存在します")
	ErrBookingIDsRequired   = errors.New("予約IDと仮押さえIDは必須です")
	ErrSeatIDsRequired      = errors.New("座席IDは必須です")
	ErrInvalidAmount        = errors.New("金額は0以上である必要があります")
)
