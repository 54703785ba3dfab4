package leave

import "context"

// Repository は休暇申請永続化の抽象です。
//
// FindByIDForUpdate は同一申請に対する判断を直列化するための行ロック付き
// 取得です。読み書きトランザクションの内側でのみ呼び出してください。
type Repository interface {
	Create(ctx context.Context, r *Request) (*Request, error)
	Update(ctx context.Context, r *Request) (*Request, error)
	FindByID(ctx context.Context, id string) (*Request, error)
	FindByIDForUpdate(ctx context.Context, id string) (*Request, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*Request, error)
	ListUnresolvedByRequester(ctx context.Context, requesterID string) ([]*Request, error)
}
