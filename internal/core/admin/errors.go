package admin

import "errors"

var (
	// ErrAdminNotFound は管理者が存在しない場合に返却されます。
	ErrAdminNotFound = errors.New("admin not found")
	// ErrEmailAlreadyExists はメールアドレス重複時に返却されます。
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidEmail はメールアドレスが不正な場合に返却されます。
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidName は名前が不正な場合に返却されます。
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidPassword はパスワードハッシュが未設定の場合に返却されます。
	ErrInvalidPassword = errors.New("invalid password")
)
