package hold

import "errors"

// Hold ドメインのエラー定義
var (
	ErrHoldNotFound        = errors.New("仮押さえが見つかりません")
	ErrHoldAlreadyTerminal = errors.New("仮押さえは既に終了しています")
	ErrHoldExpired         = errors.New("仮押さえの有効期限が切れています")
	ErrHoldNotExpired      = errors.New("仮押さえはまだ有効期限内です")
	ErrHoldNotActive       = errors.New("仮押さえはアクティブではありません")
	ErrHoldExtensionUsed   = errors.New("仮押さえの延長は一度だけです")
	ErrVersionConflict     = errors.New("仮押さえが同時に更新されました")
	ErrEventIDRequired     = errors.New("イベントIDは必須です")
	ErrOwnerRequired       = errors.New("所有者は必須です")
	ErrSeatIDsRequired     = errors.New("座席IDは必須です")
	ErrTooManySeats        = errors.New("一度に仮押さえできる座席数を超えています")
	ErrHoldAlreadyExists   = errors.New("仮押さえIDが重複しています")
)
