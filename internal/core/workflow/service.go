package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/staffhub/internal/core/authz"
	"github.com/ogurasousui/staffhub/internal/core/leave"
	"github.com/ogurasousui/staffhub/internal/core/principal"
	"github.com/ogurasousui/staffhub/internal/core/role"
	"github.com/ogurasousui/staffhub/internal/core/roster"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Service は外部へ公開する三つの操作の背後で、認可ゲート・休暇状態機械・
// 部門集計を合成します。主体は常に明示的なパラメータとして受け取り、
// 周辺状態からの取得は行いません。
type Service struct {
	principals principal.Repository
	leaves     leave.UseCase
	roster     roster.UseCase
	clock      Clock
	tx         TransactionManager
}

// UseCase はワークフローの公開インターフェースです。
type UseCase interface {
	RequestLeave(ctx context.Context, in RequestLeaveInput) (*leave.Request, error)
	DecideLeave(ctx context.Context, in DecideLeaveInput) (*leave.Request, error)
	MutateRoster(ctx context.Context, in MutateRosterInput) (*roster.Aggregate, error)

	GetPrincipal(ctx context.Context, actorID, targetID string) (*principal.Principal, error)
	GetLeaveRequest(ctx context.Context, actorID, requestID string) (*leave.Request, error)
	ListLeaveRequests(ctx context.Context, actorID, requesterID string) ([]*leave.Request, error)
	GetDivisionAggregate(ctx context.Context, actorID, directorID string) (*roster.Aggregate, error)
}

// NewService は Service を生成します。
func NewService(principals principal.Repository, leaves leave.UseCase, rosterSvc roster.UseCase, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{
		principals: principals,
		leaves:     leaves,
		roster:     rosterSvc,
		clock:      clock,
		tx:         tx,
	}
}

// RequestLeaveInput は休暇申請の入力です。
type RequestLeaveInput struct {
	RequesterID string
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
}

// DecideLeaveInput は承認判断の入力です。
type DecideLeaveInput struct {
	ActorID   string
	RequestID string
	Stage     leave.Stage
	Verdict   leave.DecisionValue
	Comments  string
}

// RosterOp は名簿変更操作の種別です。
type RosterOp string

const (
	OpAddEmployee    RosterOp = "add_employee"
	OpRemoveEmployee RosterOp = "remove_employee"
	OpChangeRole     RosterOp = "change_role"
)

// MutateRosterInput は名簿変更の入力です。操作ごとに使うフィールドが異なります。
//
//   - OpAddEmployee: Member(ID 省略可)を新規作成し、Member.DirectorID の集計へ加える。
//   - OpRemoveEmployee: MemberID の構成員を削除し、集計から除く。
//   - OpChangeRole: MemberID の役職を NewRole へ変更し、必要なら帯間でカウンタを移す。
type MutateRosterInput struct {
	ActorID  string
	Op       RosterOp
	Member   AddMemberPayload
	MemberID string
	NewRole  role.Role
}

// AddMemberPayload は新規構成員の属性です。
type AddMemberPayload struct {
	ID           string
	Role         role.Role
	ManagerID    *string
	DirectorID   string
	DepartmentID string
}

// RequestLeave は休暇申請を受け付けます。
func (s *Service) RequestLeave(ctx context.Context, in RequestLeaveInput) (*leave.Request, error) {
	requesterID := strings.TrimSpace(in.RequesterID)
	if requesterID == "" {
		return nil, leave.ErrInvalidRequesterID
	}

	if _, err := s.principals.FindByID(ctx, requesterID); err != nil {
		return nil, err
	}

	return s.leaves.Submit(ctx, leave.SubmitInput{
		RequesterID: requesterID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Reason:      in.Reason,
	})
}

// DecideLeave は認可ゲートを通過した判断者の承認・却下を申請へ適用します。
func (s *Service) DecideLeave(ctx context.Context, in DecideLeaveInput) (*leave.Request, error) {
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		return nil, ErrInvalidActorID
	}

	req, err := s.leaves.Get(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}

	actor, err := s.principals.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	requester, err := s.principals.FindByID(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}

	action := authz.ActionApproveLeaveStage1
	if in.Stage == leave.StageDirector {
		action = authz.ActionApproveLeaveStage2
	}

	if d := authz.CanAct(subjectOf(actor), subjectOf(requester), action); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", authz.ErrForbidden, d.Reason)
	}

	return s.leaves.Decide(ctx, leave.DecideInput{
		RequestID: in.RequestID,
		Stage:     in.Stage,
		Verdict:   in.Verdict,
		Comments:  in.Comments,
		DecidedBy: actor.ID,
	})
}

// MutateRoster は名簿変更を認可・検証し、構成員レコードと部門集計を
// 一つの作業単位として更新します。
func (s *Service) MutateRoster(ctx context.Context, in MutateRosterInput) (*roster.Aggregate, error) {
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		return nil, ErrInvalidActorID
	}

	actor, err := s.principals.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	switch in.Op {
	case OpAddEmployee:
		return s.addEmployee(ctx, actor, in.Member)
	case OpRemoveEmployee:
		return s.removeEmployee(ctx, actor, in.MemberID)
	case OpChangeRole:
		return s.changeRole(ctx, actor, in.MemberID, in.NewRole)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRosterOp, in.Op)
	}
}

func (s *Service) addEmployee(ctx context.Context, actor *principal.Principal, payload AddMemberPayload) (*roster.Aggregate, error) {
	directorID := strings.TrimSpace(payload.DirectorID)
	if directorID == "" {
		return nil, principal.ErrInvalidOrgLink
	}
	if strings.TrimSpace(payload.DepartmentID) == "" {
		return nil, principal.ErrInvalidDepartmentID
	}
	if !role.IsValid(payload.Role) {
		return nil, principal.ErrInvalidRole
	}

	band := role.MustClassify(payload.Role)
	if band == role.DirectorBand {
		// 部門長の着任は部門の新設であり、名簿変更の範囲外。
		return nil, principal.ErrInvalidRole
	}

	memberID := strings.TrimSpace(payload.ID)
	if memberID == "" {
		memberID = uuid.NewString()
	}

	target := authz.Subject{ID: memberID, DirectorID: directorID}
	if d := authz.CanAct(subjectOf(actor), target, authz.ActionAddRosterMember); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", authz.ErrForbidden, d.Reason)
	}

	var aggregate *roster.Aggregate
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		now := s.clock.Now()
		p := &principal.Principal{
			ID:           memberID,
			Role:         payload.Role,
			ManagerID:    cloneStringPtr(payload.ManagerID),
			DirectorID:   &directorID,
			DepartmentID: strings.TrimSpace(payload.DepartmentID),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if _, err := s.principals.Create(txCtx, p); err != nil {
			return err
		}

		agg, err := s.roster.Apply(txCtx, directorID, roster.Delta{
			Kind:     roster.DeltaAddMember,
			MemberID: memberID,
			Band:     band,
		})
		if err != nil {
			return err
		}
		aggregate = agg
		return nil
	}); err != nil {
		return nil, err
	}

	return aggregate, nil
}

func (s *Service) removeEmployee(ctx context.Context, actor *principal.Principal, memberID string) (*roster.Aggregate, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, principal.ErrInvalidID
	}

	member, err := s.principals.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if d := authz.CanAct(subjectOf(actor), subjectOf(member), authz.ActionRemoveRosterMember); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", authz.ErrForbidden, d.Reason)
	}

	// 未解決の休暇申請が残る構成員は削除できない。参照切れの申請を作らないため。
	open, err := s.leaves.HasUnresolved(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("%w: %s", ErrMemberHasOpenLeave, memberID)
	}

	band, err := member.Band()
	if err != nil {
		return nil, err
	}

	var aggregate *roster.Aggregate
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		agg, err := s.roster.Apply(txCtx, member.DirectorIDString(), roster.Delta{
			Kind:     roster.DeltaRemoveMember,
			MemberID: memberID,
			Band:     band,
		})
		if err != nil {
			return err
		}
		if err := s.principals.Delete(txCtx, memberID); err != nil {
			return err
		}
		aggregate = agg
		return nil
	}); err != nil {
		return nil, err
	}

	return aggregate, nil
}

func (s *Service) changeRole(ctx context.Context, actor *principal.Principal, memberID string, newRole role.Role) (*roster.Aggregate, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, principal.ErrInvalidID
	}
	if !role.IsValid(newRole) {
		return nil, principal.ErrInvalidRole
	}

	newBand := role.MustClassify(newRole)
	if newBand == role.DirectorBand {
		return nil, principal.ErrInvalidRole
	}

	member, err := s.principals.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	// 役職変更は名簿からの除去と再追加に相当するため、両方の権限を要求する。
	target := subjectOf(member)
	for _, action := range []authz.Action{authz.ActionRemoveRosterMember, authz.ActionAddRosterMember} {
		if d := authz.CanAct(subjectOf(actor), target, action); !d.Allowed {
			return nil, fmt.Errorf("%w: %s", authz.ErrForbidden, d.Reason)
		}
	}

	oldBand, err := member.Band()
	if err != nil {
		return nil, err
	}

	var aggregate *roster.Aggregate
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		member.Role = newRole
		member.UpdatedAt = s.clock.Now()
		if _, err := s.principals.Update(txCtx, member); err != nil {
			return err
		}

		if oldBand == newBand {
			// 同一帯内の役職変更(manager⇔team_lead など)はカウンタに影響しない。
			agg, err := s.roster.Get(txCtx, member.DirectorIDString())
			if err != nil {
				return err
			}
			aggregate = agg
			return nil
		}

		agg, err := s.roster.Apply(txCtx, member.DirectorIDString(), roster.Delta{
			Kind:     roster.DeltaChangeBand,
			MemberID: memberID,
			FromBand: oldBand,
			Band:     newBand,
		})
		if err != nil {
			return err
		}
		aggregate = agg
		return nil
	}); err != nil {
		return nil, err
	}

	return aggregate, nil
}

// GetPrincipal は自己・直属上長・部門長のいずれかの関係がある場合のみ
// 構成員情報を返します。
func (s *Service) GetPrincipal(ctx context.Context, actorID, targetID string) (*principal.Principal, error) {
	actor, target, err := s.resolvePair(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(actor, target); err != nil {
		return nil, err
	}
	return target, nil
}

// GetLeaveRequest は申請者本人・その上長・部門長に限って申請を返します。
func (s *Service) GetLeaveRequest(ctx context.Context, actorID, requestID string) (*leave.Request, error) {
	req, err := s.leaves.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	actor, requester, err := s.resolvePair(ctx, actorID, req.RequesterID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(actor, requester); err != nil {
		return nil, err
	}
	return req, nil
}

// ListLeaveRequests は指定申請者の申請一覧を返します。閲覧権限は
// GetLeaveRequest と同じです。
func (s *Service) ListLeaveRequests(ctx context.Context, actorID, requesterID string) ([]*leave.Request, error) {
	actor, requester, err := s.resolvePair(ctx, actorID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(actor, requester); err != nil {
		return nil, err
	}
	return s.leaves.ListByRequester(ctx, requester.ID)
}

// GetDivisionAggregate は部門長本人にのみ集計を返します。
func (s *Service) GetDivisionAggregate(ctx context.Context, actorID, directorID string) (*roster.Aggregate, error) {
	actor, director, err := s.resolvePair(ctx, actorID, directorID)
	if err != nil {
		return nil, err
	}
	if d := authz.CanAct(subjectOf(actor), subjectOf(director), authz.ActionViewRecord); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", authz.ErrForbidden, d.Reason)
	}
	return s.roster.Get(ctx, director.ID)
}

func (s *Service) resolvePair(ctx context.Context, actorID, targetID string) (*principal.Principal, *principal.Principal, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, nil, ErrInvalidActorID
	}
	actor, err := s.principals.FindByID(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.principals.FindByID(ctx, strings.TrimSpace(targetID))
	if err != nil {
		return nil, nil, err
	}
	return actor, target, nil
}

func (s *Service) authorizeView(actor, target *principal.Principal) error {
	actorSubject := subjectOf(actor)
	targetSubject := subjectOf(target)
	for _, action := range []authz.Action{authz.ActionViewRecord, authz.ActionViewSubordinate, authz.ActionViewDivision} {
		if d := authz.CanAct(actorSubject, targetSubject, action); d.Allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: insufficient authority", authz.ErrForbidden)
}

func subjectOf(p *principal.Principal) authz.Subject {
	return authz.Subject{
		ID:         p.ID,
		ManagerID:  p.ManagerIDString(),
		DirectorID: p.DirectorIDString(),
	}
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clone := strings.TrimSpace(*s)
	return &clone
}
