package admin

import "time"

// Admin は会社の管理者アカウントです。Country は会社の基準通貨の決定に使われます。
type Admin struct {
	ID               string
	Name             string
	Email            string
	PasswordHash     string
	Country          *string
	SessionTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
