package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ogurasousui/codex-expense-approval/internal/core/admin"
	"github.com/ogurasousui/codex-expense-approval/internal/core/role"
	"github.com/ogurasousui/codex-expense-approval/internal/core/user"
)

// AdminFinder はセッショントークンから管理者を検索します。
type AdminFinder interface {
	FindBySessionToken(ctx context.Context, tokenHash string) (*admin.Admin, error)
}

// UserFinder はセッショントークンからユーザーを検索します。
type UserFinder interface {
	FindBySessionToken(ctx context.Context, tokenHash string) (*user.User, error)
}

// Resolver はセッショントークンから主体を解決します。
type Resolver struct {
	admins AdminFinder
	users  UserFinder
}

// NewResolver は Resolver を生成します。
func NewResolver(admins AdminFinder, users UserFinder) *Resolver {
	return &Resolver{admins: admins, users: users}
}

// Resolve は管理者、ユーザーの順にトークンを照合します。
// 未知のトークンは匿名 (nil, nil) として扱い、エラーはストアの障害時のみ返します。
func (r *Resolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	hash := HashToken(token)

	a, err := r.admins.FindBySessionToken(ctx, hash)
	switch {
	case err == nil:
		return AdminIdentity(a), nil
	case !errors.Is(err, admin.ErrAdminNotFound):
		return nil, fmt.Errorf("auth: resolve admin session: %w", err)
	}

	u, err := r.users.FindBySessionToken(ctx, hash)
	switch {
	case err == nil:
		return UserIdentity(u), nil
	case errors.Is(err, user.ErrUserNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("auth: resolve user session: %w", err)
	}
}

// AdminIdentity は管理者を主体に変換します。
func AdminIdentity(a *admin.Admin) *Identity {
	id := &Identity{ID: a.ID, Email: a.Email, Name: a.Name, Role: role.Admin}
	if a.Country != nil {
		id.Country = *a.Country
	}
	return id
}

// UserIdentity はユーザーを主体に変換します。ロール未設定の場合は Employee とみなします。
func UserIdentity(u *user.User) *Identity {
	r := u.Role
	if r != role.Manager {
		r = role.Employee
	}
	return &Identity{ID: u.ID, Email: u.Email, Name: u.DisplayName(), Role: r, ManagerID: u.ManagerID}
}
