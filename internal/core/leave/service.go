package leave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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

// Service は休暇申請の状態遷移をまとめます。
// 認可判定は呼び出し側(ワークフロー層)の責務であり、ここでは申請レコードの
// 遷移規則だけを守ります。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は休暇申請ユースケースの公開インターフェースです。
type UseCase interface {
	Submit(ctx context.Context, in SubmitInput) (*Request, error)
	Decide(ctx context.Context, in DecideInput) (*Request, error)
	Get(ctx context.Context, id string) (*Request, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*Request, error)
	HasUnresolved(ctx context.Context, requesterID string) (bool, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// SubmitInput は休暇申請の入力です。
type SubmitInput struct {
	RequesterID string
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
}

// DecideInput は承認判断の入力です。DecidedBy は認可済みの判断者 ID です。
type DecideInput struct {
	RequestID string
	Stage     Stage
	Verdict   DecisionValue
	Comments  string
	DecidedBy string
}

// Submit は新しい休暇申請を作成します。
// 同一申請者の未解決の申請と期間が重なる場合は ErrOverlappingRequest で失敗します。
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Request, error) {
	requesterID := strings.TrimSpace(in.RequesterID)
	if requesterID == "" {
		return nil, ErrInvalidRequesterID
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, ErrInvalidReason
	}

	start := normalizeDate(in.StartDate)
	end := normalizeDate(in.EndDate)
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}

	var created *Request
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		unresolved, err := s.repo.ListUnresolvedByRequester(txCtx, requesterID)
		if err != nil {
			return err
		}
		for _, existing := range unresolved {
			if existing.Overlaps(start, end) {
				return fmt.Errorf("%w: %s..%s", ErrOverlappingRequest, start.Format(dateLayout), end.Format(dateLayout))
			}
		}

		now := s.clock.Now()
		req := &Request{
			ID:          uuid.NewString(),
			RequesterID: requesterID,
			StartDate:   start,
			EndDate:     end,
			Reason:      reason,
			Manager:     StageDecision{Value: DecisionPending},
			Director:    StageDecision{Value: DecisionPending},
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		result, err := s.repo.Create(txCtx, req)
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// Decide は指定段階の判断を記録し、全体ステータスを導出し直します。
// 全体が終端に達した申請、および判断済みの段階への再判断は ErrAlreadyResolved で
// 失敗します。同一段階への競合する判断は行ロックで直列化され、敗者が
// ErrAlreadyResolved を受け取ります。
func (s *Service) Decide(ctx context.Context, in DecideInput) (*Request, error) {
	if strings.TrimSpace(in.RequestID) == "" {
		return nil, ErrInvalidID
	}
	if in.Stage != StageManager && in.Stage != StageDirector {
		return nil, ErrInvalidStage
	}
	if in.Verdict != DecisionApproved && in.Verdict != DecisionRejected {
		return nil, ErrInvalidVerdict
	}

	var decided *Request
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		req, err := s.repo.FindByIDForUpdate(txCtx, in.RequestID)
		if err != nil {
			return err
		}

		if req.Status.Terminal() {
			return ErrAlreadyResolved
		}
		if req.StageDecisionFor(in.Stage).Value != DecisionPending {
			return ErrAlreadyResolved
		}

		now := s.clock.Now()
		decision := StageDecision{
			Value:     in.Verdict,
			DecidedBy: in.DecidedBy,
			DecidedAt: &now,
			Comments:  strings.TrimSpace(in.Comments),
		}

		if in.Stage == StageDirector {
			req.Director = decision
		} else {
			req.Manager = decision
		}
		req.Status = DeriveStatus(req.Manager.Value, req.Director.Value)
		req.UpdatedAt = now

		result, err := s.repo.Update(txCtx, req)
		if err != nil {
			return err
		}
		decided = result
		return nil
	}); err != nil {
		return nil, err
	}

	return decided, nil
}

// Get は休暇申請を取得します。
func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}

	var result *Request
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListByRequester は申請者の休暇申請一覧を取得します。
func (s *Service) ListByRequester(ctx context.Context, requesterID string) ([]*Request, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, ErrInvalidRequesterID
	}

	var result []*Request
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListByRequester(txCtx, requesterID)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// HasUnresolved は申請者に未解決の休暇申請が残っているかを返します。
func (s *Service) HasUnresolved(ctx context.Context, requesterID string) (bool, error) {
	if strings.TrimSpace(requesterID) == "" {
		return false, ErrInvalidRequesterID
	}

	var unresolved bool
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListUnresolvedByRequester(txCtx, requesterID)
		if err != nil {
			return err
		}
		unresolved = len(found) > 0
		return nil
	}); err != nil {
		return false, err
	}

	return unresolved, nil
}

const dateLayout = "2006-01-02"

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
