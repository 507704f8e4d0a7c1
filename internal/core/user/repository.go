package user

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-expense-approval/internal/core/role"
)

// Repository はユーザーエンティティの永続化を行うインターフェースです。
type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindBySessionToken(ctx context.Context, tokenHash string) (*User, error)
	UpdateSessionToken(ctx context.Context, id string, tokenHash *string, updatedAt time.Time) error
	// UpdatePassword はパスワードハッシュを差し替え、既存のセッショントークンを無効化します。
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	List(ctx context.Context, filter ListUsersFilter) ([]*User, error)
	ListByManager(ctx context.Context, managerID string) ([]*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// ListUsersFilter は一覧取得時の検索条件です。
type ListUsersFilter struct {
	// Query はメールアドレスまたはユーザー名に対する部分一致条件です。
	Query string
	Role  *role.Role
	Limit int
}
