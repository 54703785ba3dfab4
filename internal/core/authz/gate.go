package authz

// Action は対象レコードに対する操作種別を表します。
type Action string

const (
	ActionViewRecord         Action = "view-record"
	ActionUpdateRecord       Action = "update-record"
	ActionAssignTask         Action = "assign-task"
	ActionApproveLeaveStage1 Action = "approve-leave-stage1"
	ActionApproveLeaveStage2 Action = "approve-leave-stage2"
	ActionViewSubordinate    Action = "view-subordinate-data"
	ActionAddRosterMember    Action = "add-roster-member"
	ActionRemoveRosterMember Action = "remove-roster-member"
	ActionViewDivision       Action = "view-division-data"
)

// Subject は認可判定に必要な最小限の主体・対象情報です。
// 組織リンクは呼び出し側で解決済みの値を渡します。ゲート自身は参照を行いません。
type Subject struct {
	ID         string
	ManagerID  string
	DirectorID string
}

// Decision は認可判定の結果を表します。拒否は例外ではなく通常の結果です。
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow は許可の判定を返します。
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny は理由付きの拒否判定を返します。
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

var selfActions = map[Action]struct{}{
	ActionViewRecord:   {},
	ActionUpdateRecord: {},
}

var managerActions = map[Action]struct{}{
	ActionAssignTask:         {},
	ActionApproveLeaveStage1: {},
	ActionViewSubordinate:    {},
}

var directorActions = map[Action]struct{}{
	ActionApproveLeaveStage2: {},
	ActionAddRosterMember:    {},
	ActionRemoveRosterMember: {},
	ActionViewDivision:       {},
}

// CanAct は actor が target に対して action を行えるかを判定します。
// ルールは次の順で評価されます。
//
//  1. 自己レコード: target が actor 自身であれば閲覧・更新を許可する。
//  2. 直属上長: target.ManagerID が actor であればタスク割当・一段階目の
//     休暇承認・部下データ閲覧を許可する。
//  3. 部門長: target.DirectorID が actor であれば二段階目の休暇承認・
//     名簿の追加削除・部門データ閲覧を許可する。
//
// どのルールにも該当しない操作は拒否されます。
func CanAct(actor, target Subject, action Action) Decision {
	if actor.ID != "" && actor.ID == target.ID {
		if _, ok := selfActions[action]; ok {
			return Allow()
		}
	}

	if actor.ID != "" && target.ManagerID == actor.ID {
		if _, ok := managerActions[action]; ok {
			return Allow()
		}
	}

	if actor.ID != "" && target.DirectorID == actor.ID {
		if _, ok := directorActions[action]; ok {
			return Allow()
		}
	}

	return Deny("insufficient authority")
}
