package leave

import "time"

// DecisionValue は一段階の承認判断の値を表します。
type DecisionValue string

const (
	DecisionPending  DecisionValue = "pending"
	DecisionApproved DecisionValue = "approved"
	DecisionRejected DecisionValue = "rejected"
)

// Status は休暇申請の全体ステータスを表します。
// 常に二段階の判断から導出され、単独で設定されることはありません。
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal は全体ステータスが終端かどうかを返します。
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Stage は承認段階を表します。
type Stage string

const (
	StageManager  Stage = "manager"
	StageDirector Stage = "director"
)

// StageDecision は一段階分の判断と付随メタデータを表します。
type StageDecision struct {
	Value     DecisionValue
	DecidedBy string
	DecidedAt *time.Time
	Comments  string
}

// Request は一件の休暇申請を表します。開始日・終了日は両端を含みます。
type Request struct {
	ID          string
	RequesterID string
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
	Manager     StageDecision
	Director    StageDecision
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeriveStatus は二段階の判断から全体ステータスを導出します。
// どちらかの段階が却下なら却下で確定し、両段階が承認のときのみ承認、
// それ以外は保留です。
func DeriveStatus(manager, director DecisionValue) Status {
	if manager == DecisionRejected || director == DecisionRejected {
		return StatusRejected
	}
	if manager == DecisionApproved && director == DecisionApproved {
		return StatusApproved
	}
	return StatusPending
}

// Overlaps は申請期間が指定範囲と重なるかどうかを返します。両端を含みます。
func (r *Request) Overlaps(start, end time.Time) bool {
	return !r.StartDate.After(end) && !r.EndDate.Before(start)
}

// StageDecisionFor は指定段階の判断を返します。
func (r *Request) StageDecisionFor(stage Stage) StageDecision {
	if stage == StageDirector {
		return r.Director
	}
	return r.Manager
}
