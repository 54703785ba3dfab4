package roster

import "context"

// Repository は部門集計レコード永続化の抽象です。
//
// UpdateVersioned は渡された Aggregate の Version が保存中の値と一致する
// 場合のみ書き込み、世代番号を加算します。一致しない場合は
// ErrAggregateConflict を返します。
// Rebuild は権威的なメンバーシップから集計を作り直して保存します。
type Repository interface {
	Create(ctx context.Context, a *Aggregate) (*Aggregate, error)
	UpdateVersioned(ctx context.Context, a *Aggregate) (*Aggregate, error)
	FindByDirector(ctx context.Context, directorID string) (*Aggregate, error)
	Rebuild(ctx context.Context, directorID string) (*Aggregate, error)
	Delete(ctx context.Context, directorID string) error
}
