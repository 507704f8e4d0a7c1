package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ogurasousui/codex-expense-approval/internal/core/admin"
	"github.com/ogurasousui/codex-expense-approval/internal/core/role"
	"github.com/ogurasousui/codex-expense-approval/internal/core/user"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// RegistrationLocker は登録処理を同一トランザクション内で直列化します。
type RegistrationLocker interface {
	LockRegistration(ctx context.Context) error
}

// Message は送信するメールです。
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer はメールを送信します。
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Deps は Service の依存関係です。
type Deps struct {
	Admins   admin.Repository
	Users    user.Repository
	AdminSvc admin.UseCase
	UserSvc  user.UseCase
	Mailer   Mailer
	Tokens   TokenGenerator
	Clock    Clock
	Tx       TransactionManager
	Locker   RegistrationLocker
	Logger   *zap.Logger
}

// Service はログイン・登録・パスワード再発行のユースケースをまとめます。
type Service struct {
	admins   admin.Repository
	users    user.Repository
	adminSvc admin.UseCase
	userSvc  user.UseCase
	mailer   Mailer
	tokens   TokenGenerator
	clock    Clock
	tx       TransactionManager
	locker   RegistrationLocker
	logger   *zap.Logger
}

// NewService は Service を生成します。
func NewService(d Deps) *Service {
	s := &Service{
		admins:   d.Admins,
		users:    d.Users,
		adminSvc: d.AdminSvc,
		userSvc:  d.UserSvc,
		mailer:   d.Mailer,
		tokens:   d.Tokens,
		clock:    d.Clock,
		tx:       d.Tx,
		locker:   d.Locker,
		logger:   d.Logger,
	}
	if s.tokens == nil {
		s.tokens = RandomTokens{}
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.tx == nil {
		s.tx = noopTransactionManager{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Session はログイン成功時に発行されるセッションです。Token は Cookie に格納する平文です。
type Session struct {
	Token    string
	Identity *Identity
}

// LoginInput はログイン時の入力です。
type LoginInput struct {
	Email    string
	Password string
}

// RegisterInput は自己登録時の入力です。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Country  string
}

// ProvisionUserInput は管理者によるユーザー作成時の入力です。
type ProvisionUserInput struct {
	Email     string
	Username  string
	Role      role.Role
	ManagerID *string
}

// ProvisionResult は作成したユーザーと一時パスワードの通知結果です。
type ProvisionResult struct {
	User      *user.User
	Delivered bool
}

// Login は管理者、ユーザーの順に認証し、新しいセッショントークンを発行します。
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.SessionToken()
	if err != nil {
		return nil, err
	}
	hash := HashToken(token)
	now := s.clock.Now()

	a, err := s.admins.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !CheckPassword(a.PasswordHash, in.Password) {
			return nil, ErrInvalidCredentials
		}
		if err := s.admins.UpdateSessionToken(ctx, a.ID, &hash, now); err != nil {
			return nil, fmt.Errorf("auth: store admin session: %w", err)
		}
		return &Session{Token: token, Identity: AdminIdentity(a)}, nil
	case !errors.Is(err, admin.ErrAdminNotFound):
		return nil, err
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	if err := s.users.UpdateSessionToken(ctx, u.ID, &hash, now); err != nil {
		return nil, fmt.Errorf("auth: store user session: %w", err)
	}
	return &Session{Token: token, Identity: UserIdentity(u)}, nil
}

// Logout は主体のセッショントークンを無効化します。id が nil の場合は何もしません。
func (s *Service) Logout(ctx context.Context, id *Identity) error {
	if id == nil {
		return nil
	}
	now := s.clock.Now()
	if id.Role == role.Admin {
		return s.admins.UpdateSessionToken(ctx, id.ID, nil, now)
	}
	return s.users.UpdateSessionToken(ctx, id.ID, nil, now)
}

// Register は自己登録を行います。管理者が未登録であれば会社の管理者を作成し、
// それ以降の登録は権限を持たない Employee ユーザーになります。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Identity, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var registered *Identity
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if s.locker != nil {
			if err := s.locker.LockRegistration(txCtx); err != nil {
				return err
			}
		}

		count, err := s.adminSvc.CountAdmins(txCtx)
		if err != nil {
			return err
		}

		if count == 0 {
			a, err := s.adminSvc.CreateAdmin(txCtx, admin.CreateAdminInput{
				Name:         in.Name,
				Email:        in.Email,
				PasswordHash: hash,
				Country:      in.Country,
			})
			if err != nil {
				return err
			}
			registered = AdminIdentity(a)
			return nil
		}

		u, err := s.userSvc.CreateUser(txCtx, user.CreateUserInput{
			Email:        in.Email,
			Username:     in.Name,
			PasswordHash: hash,
			Role:         role.Employee,
		})
		if err != nil {
			return err
		}
		registered = UserIdentity(u)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered", zap.String("email", registered.Email), zap.String("role", registered.Role.String()))
	return registered, nil
}

// ProvisionUser は一時パスワード付きでユーザーを作成し、本人にメールで通知します。
func (s *Service) ProvisionUser(ctx context.Context, in ProvisionUserInput) (*ProvisionResult, error) {
	password, err := s.tokens.TemporaryPassword()
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	created, err := s.userSvc.CreateUser(ctx, user.CreateUserInput{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		ManagerID:    in.ManagerID,
	})
	if err != nil {
		return nil, err
	}

	delivered := s.deliver(ctx, Message{
		To:      created.Email,
		Subject: "Your expense account",
		Text:    fmt.Sprintf("Hello %s,\n\nAn account has been created for you.\nTemporary password: %s\n\nPlease sign in and change it.\n", created.DisplayName(), password),
	})
	return &ProvisionResult{User: created, Delivered: delivered}, nil
}

// SendTemporaryPassword は指定ユーザーのパスワードを一時パスワードに置き換えて通知します。
func (s *Service) SendTemporaryPassword(ctx context.Context, userID string) (bool, error) {
	u, err := s.userSvc.GetUser(ctx, user.GetUserInput{ID: userID})
	if err != nil {
		return false, err
	}
	return s.resetPassword(ctx, u.Email, u.DisplayName(), func(hash string) error {
		return s.users.UpdatePassword(ctx, u.ID, hash, s.clock.Now())
	})
}

// ForgotPassword はメールアドレスに対応するアカウントに一時パスワードを発行します。
// アカウントの存在有無は呼び出し側に明かしません。
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil
	}

	a, err := s.admins.FindByEmail(ctx, normalized)
	switch {
	case err == nil:
		_, err := s.resetPassword(ctx, a.Email, a.Name, func(hash string) error {
			return s.admins.UpdatePassword(ctx, a.ID, hash, s.clock.Now())
		})
		return err
	case !errors.Is(err, admin.ErrAdminNotFound):
		return err
	}

	u, err := s.users.FindByEmail(ctx, normalized)
	switch {
	case err == nil:
		_, err := s.resetPassword(ctx, u.Email, u.DisplayName(), func(hash string) error {
			return s.users.UpdatePassword(ctx, u.ID, hash, s.clock.Now())
		})
		return err
	case errors.Is(err, user.ErrUserNotFound):
		s.logger.Info("password reset requested for unknown email")
		return nil
	default:
		return err
	}
}

func (s *Service) resetPassword(ctx context.Context, email, name string, store func(hash string) error) (bool, error) {
	password, err := s.tokens.TemporaryPassword()
	if err != nil {
		return false, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	if err := store(hash); err != nil {
		return false, err
	}

	return s.deliver(ctx, Message{
		To:      email,
		Subject: "Your temporary password",
		Text:    fmt.Sprintf("Hello %s,\n\nYour password has been reset.\nTemporary password: %s\n\nPlease sign in and change it.\n", name, password),
	}), nil
}

func (s *Service) deliver(ctx context.Context, msg Message) bool {
	if s.mailer == nil {
		s.logger.Warn("mailer not configured", zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return false
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("mail delivery failed", zap.String("to", msg.To), zap.Error(err))
		return false
	}
	return true
}
