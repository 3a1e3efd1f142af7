package application

import "errors"

// アプリケーション層のエラー定義
// 仮押さえ・支払い単体のエラーは各ドメインパッケージの定義をそのまま返す
var (
	ErrSeatsUnavailable = errors.New("指定の座席は他の仮押さえ中または予約済みです")
	ErrSeatsBusy        = errors.New("座席が他のリクエストで処理中です")
	ErrAlreadyCommitted = errors.New("仮押さえは既に予約確定しています")
	ErrPaymentMismatch  = errors.New("支払いがこの仮押さえに紐付いていません")
	ErrIntegrity        = errors.New("座席と仮押さえの状態が一致しません")
	ErrPaymentFailed    = errors.New("支払いは拒否または失効しています")
)
