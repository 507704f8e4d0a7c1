package auth

import (
	"context"

	"github.com/ogurasousui/codex-expense-approval/internal/core/role"
)

// Identity はリクエストごとに解決される認証済み主体です。
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  role.Role
	// Country は管理者のみが持つ国名です。
	Country string
	// ManagerID はユーザーの上長 ID です。
	ManagerID *string
}

type identityContextKey struct{}

// ContextWithIdentity は id を格納したコンテキストを返します。
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext はコンテキストから主体を取り出します。匿名の場合は false です。
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}
