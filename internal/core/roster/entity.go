package roster

import (
	"time"

	"github.com/ogurasousui/staffhub/internal/core/role"
)

// Aggregate は部門長ごとのロールアップレコードです。
// Version は楽観ロック用の世代番号で、更新のたびにリポジトリ側で加算されます。
type Aggregate struct {
	DirectorID     string
	TotalEmployees int
	TotalManagers  int
	MemberIDs      []string
	Version        int64
	UpdatedAt      time.Time
}

// Consistent はカウンタとメンバー集合の整合性不変条件を満たすかを返します。
func (a *Aggregate) Consistent() bool {
	return a.TotalEmployees >= 0 && a.TotalManagers >= 0 &&
		a.TotalEmployees+a.TotalManagers == len(a.MemberIDs)
}

// Contains はメンバー集合に id が含まれるかを返します。
func (a *Aggregate) Contains(id string) bool {
	for _, member := range a.MemberIDs {
		if member == id {
			return true
		}
	}
	return false
}

// DeltaKind は名簿変更の種別を表します。
type DeltaKind string

const (
	DeltaAddMember    DeltaKind = "add_member"
	DeltaRemoveMember DeltaKind = "remove_member"
	DeltaChangeBand   DeltaKind = "change_band"
)

// Delta は一件の名簿変更を表します。ChangeBand のときのみ FromBand を使います。
type Delta struct {
	Kind     DeltaKind
	MemberID string
	Band     role.Band
	FromBand role.Band
}
