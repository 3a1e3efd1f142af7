package payment

import "errors"

// Payment ドメインのエラー定義
var (
	ErrPaymentNotFound        = errors.New("支払いが見つかりません")
	ErrPaymentAlreadyResolved = errors.New("支払いは既に確定しています")
	ErrAlreadyVerifying       = errors.New("支払いは既に検証中です")
	ErrPaymentInProgress      = errors.New("この仮押さえには処理中の支払いがあります")
	ErrReferenceRequired      = errors.New("参照番号は必須です")
	ErrInvalidReference       = errors.New("参照番号の形式が正しくありません")
	ErrVersionConflict        = errors.New("支払いが同時に更新されました")
	ErrPaymentAlreadyExists   = errors.New("支払いIDが重複しています")
)
