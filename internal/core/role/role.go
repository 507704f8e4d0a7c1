// Package role はアクセス制御に用いるロールの閉じた列挙を定義します。
package role

import (
	"errors"
	"strings"
)

// ErrUnknownRole は未知のロール名を解析した場合に返却されます。
var ErrUnknownRole = errors.New("role: unknown role")

// Role は認証済み主体のロールです。ゼロ値はどのロールにも該当しません。
type Role uint8

const (
	// Admin は管理者です。users テーブルではなく admins テーブルに保存されます。
	Admin Role = iota + 1
	// Manager は承認者となるユーザーです。
	Manager
	// Employee は経費申請を行うユーザーです。
	Employee
)

// String は永続化や表示に用いる名前を返します。
func (r Role) String() string {
	switch r {
	case Admin:
		return "Admin"
	case Manager:
		return "Manager"
	case Employee:
		return "Employee"
	default:
		return ""
	}
}

// Valid は r が定義済みのロールかどうかを返します。
func (r Role) Valid() bool {
	switch r {
	case Admin, Manager, Employee:
		return true
	default:
		return false
	}
}

// Parse は大文字小文字を区別せずにロール名を解析します。
func Parse(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return Admin, nil
	case "manager":
		return Manager, nil
	case "employee":
		return Employee, nil
	default:
		return 0, ErrUnknownRole
	}
}

// Set はロールの集合です。
type Set uint8

// NewSet は指定されたロールからなる集合を生成します。
func NewSet(roles ...Role) Set {
	var s Set
	for _, r := range roles {
		if r.Valid() {
			s |= 1 << r
		}
	}
	return s
}

// Contains は r が集合に含まれるかどうかを返します。
func (s Set) Contains(r Role) bool {
	if !r.Valid() {
		return false
	}
	return s&(1<<r) != 0
}
