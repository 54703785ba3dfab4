package principal

import "context"

// Repository は構成員永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, p *Principal) (*Principal, error)
	Update(ctx context.Context, p *Principal) (*Principal, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Principal, error)
	ListByDirector(ctx context.Context, directorID string) ([]*Principal, error)
}
