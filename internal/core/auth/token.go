package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	sessionTokenBytes       = 16
	temporaryPasswordLength = 12
	alphanumeric            = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// TokenGenerator はセッショントークンと一時パスワードを生成します。
type TokenGenerator interface {
	SessionToken() (string, error)
	TemporaryPassword() (string, error)
}

// RandomTokens は crypto/rand を用いる TokenGenerator です。
type RandomTokens struct{}

// SessionToken は 32 文字の 16 進文字列を返します。
func (RandomTokens) SessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TemporaryPassword は英数字からなる一時パスワードを返します。
func (RandomTokens) TemporaryPassword() (string, error) {
	return randomAlphanumeric(temporaryPasswordLength)
}

func randomAlphanumeric(n int) (string, error) {
	max := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("auth: read random: %w", err)
		}
		out[i] = alphanumeric[idx.Int64()]
	}
	return string(out), nil
}

// HashToken は保存用にセッショントークンをハッシュ化します。
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
