package auth

import "errors"

var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しない場合に返却されます。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrWeakPassword はパスワードが短すぎる場合に返却されます。
	ErrWeakPassword = errors.New("password too short")
)
