package auth

// NewServiceWithMailer はインメモリのリポジトリと指定の Mailer で Service を生成します。
func NewServiceWithMailer(tokens TokenGenerator, mailer Mailer) *Service {
	return newHarnessWithMailer(tokens, mailer).svc
}
