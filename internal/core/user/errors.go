package user

import "errors"

var (
	// ErrUserNotFound はユーザーが存在しない場合に返却されます。
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailAlreadyExists はメールアドレス重複時に返却されます。
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidEmail はメールアドレスが不正な場合に返却されます。
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidUsername はユーザー名が不正な場合に返却されます。
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword はパスワードハッシュが未設定の場合に返却されます。
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidRole はロールが不正な場合に返却されます。
	ErrInvalidRole = errors.New("invalid role")
	// ErrRoleNotAllowed はユーザーに付与できないロールが指定された場合に返却されます。
	ErrRoleNotAllowed = errors.New("role not allowed for users")
	// ErrManagerNotFound は上長として指定されたユーザーが存在しない場合に返却されます。
	ErrManagerNotFound = errors.New("manager not found")
	// ErrInvalidManager は上長として指定されたユーザーが Manager でない場合に返却されます。
	ErrInvalidManager = errors.New("manager must have the Manager role")
	// ErrInvalidID はIDが不正な場合に返却されます。
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidLimit は取得件数が上限を超える場合に返却されます。
	ErrInvalidLimit = errors.New("invalid limit")
)
