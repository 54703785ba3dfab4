package authz

import "errors"

var (
	// ErrForbidden は認可ゲートに拒否された操作を示します。リトライしても解決しません。
	ErrForbidden = errors.New("authz: forbidden")
)
