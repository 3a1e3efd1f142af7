package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrSeatMapNotFound = errors.New("座席配置が見つかりません")
	ErrEventIDRequired = errors.New("イベントIDは必須です")
	ErrSeatIDRequired  = errors.New("座席IDが空の座席があります")
	ErrDuplicateSeatID = errors.New("座席IDが重複しています")
	ErrInvalidPrice    = errors.New("価格は0以上である必要があります")
	ErrNoSeats         = errors.New("座席が1席もありません")
	ErrEventIDMismatch = errors.New("パスと本文のイベントIDが一致しません")
)
