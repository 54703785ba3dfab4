package principal

import (
	"time"

	"github.com/ogurasousui/staffhub/internal/core/role"
)

// Principal は認証済みの組織構成員を表します。
// ManagerID は直近の上位権限者、DirectorID は所属部門の部門長です。
// 部門長直属のマネージャは ManagerID を持たず DirectorID のみを持ちます。
type Principal struct {
	ID           string
	Role         role.Role
	ManagerID    *string
	DirectorID   *string
	DepartmentID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Band は役職を権限帯に分類した結果を返します。
func (p *Principal) Band() (role.Band, error) {
	return role.Classify(p.Role)
}

// ManagerIDString は上長 ID を返します。未設定の場合は空文字です。
func (p *Principal) ManagerIDString() string {
	if p.ManagerID == nil {
		return ""
	}
	return *p.ManagerID
}

// DirectorIDString は部門長 ID を返します。未設定の場合は空文字です。
func (p *Principal) DirectorIDString() string {
	if p.DirectorID == nil {
		return ""
	}
	return *p.DirectorID
}
