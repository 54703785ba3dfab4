package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ogurasousui/staffhub/internal/core/role"
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

// Service は部門集計の読み取り・変更・整合性維持をまとめます。
//
// 書き込みは directorId 単位のミューテックスで直列化し、さらに
// リポジトリ側の世代番号チェックで多重プロセス間の競合を検出します。
// 世代競合は一度だけ読み直して再適用し、それでも競合する場合は
// ErrAggregateConflict を呼び出し側へ返します。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
	locks sync.Map
}

// UseCase は部門集計ユースケースの公開インターフェースです。
type UseCase interface {
	Apply(ctx context.Context, directorID string, delta Delta) (*Aggregate, error)
	Get(ctx context.Context, directorID string) (*Aggregate, error)
	Remove(ctx context.Context, directorID string) error
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

// Apply は一件の名簿変更を集計へ不可分に適用します。
// 不変条件 totalEmployees + totalManagers == |memberIds| を壊す変更は
// 適用されず、集計は変更前のまま残ります。
func (s *Service) Apply(ctx context.Context, directorID string, delta Delta) (*Aggregate, error) {
	directorID = strings.TrimSpace(directorID)
	if directorID == "" {
		return nil, ErrInvalidDirectorID
	}
	if err := validateDelta(delta); err != nil {
		return nil, err
	}

	mu := s.lockFor(directorID)
	mu.Lock()
	defer mu.Unlock()

	applied, err := s.applyOnce(ctx, directorID, delta)
	if errors.Is(err, ErrAggregateConflict) {
		applied, err = s.applyOnce(ctx, directorID, delta)
	}
	return applied, err
}

// Get は部門集計を取得します。表示用途の読み取りは直列化しません。
func (s *Service) Get(ctx context.Context, directorID string) (*Aggregate, error) {
	directorID = strings.TrimSpace(directorID)
	if directorID == "" {
		return nil, ErrInvalidDirectorID
	}

	var result *Aggregate
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByDirector(txCtx, directorID)
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

// Remove は部門長の廃止に伴い集計レコードを削除します。
func (s *Service) Remove(ctx context.Context, directorID string) error {
	directorID = strings.TrimSpace(directorID)
	if directorID == "" {
		return ErrInvalidDirectorID
	}

	mu := s.lockFor(directorID)
	mu.Lock()
	defer mu.Unlock()

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, directorID)
	})
}

func (s *Service) applyOnce(ctx context.Context, directorID string, delta Delta) (*Aggregate, error) {
	var applied *Aggregate
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.repo.FindByDirector(txCtx, directorID)
		creating := false
		switch {
		case err == nil:
		case errors.Is(err, ErrAggregateNotFound) && delta.Kind == DeltaAddMember:
			// 部門の初回メンバー追加で集計を暗黙に用意する。
			current = &Aggregate{DirectorID: directorID}
			creating = true
		default:
			return err
		}

		if !creating && !current.Consistent() {
			rebuilt, err := s.repo.Rebuild(txCtx, directorID)
			if err != nil {
				return fmt.Errorf("rebuild diverged aggregate: %w", err)
			}
			current = rebuilt
		}

		next, err := applyDelta(current, delta)
		if err != nil {
			return err
		}
		if !next.Consistent() {
			return ErrInconsistentDelta
		}
		next.UpdatedAt = s.clock.Now()

		var stored *Aggregate
		if creating {
			stored, err = s.repo.Create(txCtx, next)
		} else {
			stored, err = s.repo.UpdateVersioned(txCtx, next)
		}
		if err != nil {
			return err
		}
		applied = stored
		return nil
	}); err != nil {
		return nil, err
	}

	return applied, nil
}

func (s *Service) lockFor(directorID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(directorID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func validateDelta(d Delta) error {
	if strings.TrimSpace(d.MemberID) == "" {
		return ErrInvalidMemberID
	}
	switch d.Kind {
	case DeltaAddMember, DeltaRemoveMember:
		return validateBand(d.Band)
	case DeltaChangeBand:
		if err := validateBand(d.Band); err != nil {
			return err
		}
		if err := validateBand(d.FromBand); err != nil {
			return err
		}
		if d.Band == d.FromBand {
			return fmt.Errorf("%w: band unchanged", ErrInvalidDelta)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDelta, d.Kind)
	}
}

func validateBand(b role.Band) error {
	if b != role.EmployeeBand && b != role.ManagerBand {
		return ErrInvalidBand
	}
	return nil
}

func applyDelta(current *Aggregate, delta Delta) (*Aggregate, error) {
	next := cloneAggregate(current)

	switch delta.Kind {
	case DeltaAddMember:
		if next.Contains(delta.MemberID) {
			return nil, fmt.Errorf("%w: %s", ErrMemberAlreadyListed, delta.MemberID)
		}
		next.MemberIDs = append(next.MemberIDs, delta.MemberID)
		addToCounter(next, delta.Band, 1)

	case DeltaRemoveMember:
		if !next.Contains(delta.MemberID) {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, delta.MemberID)
		}
		removeMember(next, delta.MemberID)
		addToCounter(next, delta.Band, -1)

	case DeltaChangeBand:
		if !next.Contains(delta.MemberID) {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, delta.MemberID)
		}
		addToCounter(next, delta.FromBand, -1)
		addToCounter(next, delta.Band, 1)
	}

	return next, nil
}

func addToCounter(a *Aggregate, band role.Band, delta int) {
	if band == role.ManagerBand {
		a.TotalManagers += delta
		return
	}
	a.TotalEmployees += delta
}

func removeMember(a *Aggregate, memberID string) {
	for idx, member := range a.MemberIDs {
		if member == memberID {
			a.MemberIDs = append(a.MemberIDs[:idx], a.MemberIDs[idx+1:]...)
			return
		}
	}
}

func cloneAggregate(a *Aggregate) *Aggregate {
	clone := *a
	clone.MemberIDs = append([]string(nil), a.MemberIDs...)
	return &clone
}
