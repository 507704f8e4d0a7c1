package user

import (
	"time"

	"github.com/ogurasousui/codex-expense-approval/internal/core/role"
)

// User は経費を申請・承認する社員アカウントです。ロールは Employee か Manager のいずれかです。
type User struct {
	ID               string
	Email            string
	Username         string
	PasswordHash     string
	SessionTokenHash *string
	Role             role.Role
	ManagerID        *string
	// ManagerName は一覧取得時に結合される上長のユーザー名です。
	ManagerName *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayName は表示用の名前を返します。ユーザー名が空の場合はメールアドレスを返します。
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
