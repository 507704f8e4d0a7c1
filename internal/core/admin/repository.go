package admin

import (
	"context"
	"time"
)

// Repository は管理者エンティティの永続化を行うインターフェースです。
type Repository interface {
	Create(ctx context.Context, admin *Admin) (*Admin, error)
	FindByID(ctx context.Context, id string) (*Admin, error)
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	FindBySessionToken(ctx context.Context, tokenHash string) (*Admin, error)
	// FindEarliest は最初に登録された管理者を返します。
	FindEarliest(ctx context.Context) (*Admin, error)
	UpdateSessionToken(ctx context.Context, id string, tokenHash *string, updatedAt time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	List(ctx context.Context) ([]*Admin, error)
	Count(ctx context.Context) (int, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}
