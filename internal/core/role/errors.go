package role

import "errors"

var (
	// ErrUnknownRole は役職の分類表に存在しない値を示します。設定不備扱いです。
	ErrUnknownRole = errors.New("role: unknown role")
)
