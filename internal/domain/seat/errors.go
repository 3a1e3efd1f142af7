package seat

import "errors"

// Seat ドメインのエラー定義
var (
	ErrSeatNotFound     = errors.New("座席が見つかりません")
	ErrSeatNotAvailable = errors.New("座席は仮押さえできません")
	ErrSeatConflict     = errors.New("座席が既に他の仮押さえまたは予約に使われています")
	ErrSeatStale        = errors.New("座席は指定の仮押さえに保持されていません")
	ErrSeatIDsRequired  = errors.New("座席IDは必須です")
	ErrEventIDRequired  = errors.New("イベントIDは必須です")
	ErrSeatIDRequired   = errors.New("座席IDが空です")
	ErrInvalidPrice     = errors.New("価格は0以上である必要があります")
)
