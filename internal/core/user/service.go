package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ogurasousui/codex-expense-approval/internal/core/role"
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
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// EmailRegistry はユーザー以外のアカウント空間でメールアドレスが使用済みかを判定します。
type EmailRegistry interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Service はユーザーに関するユースケースをまとめます。
type Service struct {
	repo   Repository
	others EmailRegistry
	clock  Clock
	tx     TransactionManager
}

// UseCase はユーザーユースケースの公開インターフェースです。
type UseCase interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*User, error)
	DeleteUser(ctx context.Context, in DeleteUserInput) error
	GetUser(ctx context.Context, in GetUserInput) (*User, error)
	ListUsers(ctx context.Context, in ListUsersInput) ([]*User, error)
	ListManagers(ctx context.Context) ([]*User, error)
	ListDirectReports(ctx context.Context, managerID string) ([]*User, error)
}

// NewService は Service を生成します。others が nil の場合は他のアカウント空間を確認しません。
func NewService(repo Repository, others EmailRegistry, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, others: others, clock: clock, tx: tx}
}

// CreateUserInput はユーザー作成時の入力です。PasswordHash は呼び出し側でハッシュ化済みの値です。
type CreateUserInput struct {
	Email        string
	Username     string
	PasswordHash string
	Role         role.Role
	ManagerID    *string
}

// DeleteUserInput はユーザー削除時の入力です。
type DeleteUserInput struct {
	ID string
}

// GetUserInput はユーザー取得時の入力です。
type GetUserInput struct {
	ID string
}

// ListUsersInput は一覧取得時の入力です。
type ListUsersInput struct {
	Query string
	Role  *role.Role
	Limit int
}

// CreateUser は新しいユーザーを作成します。
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	if in.PasswordHash == "" {
		return nil, ErrInvalidPassword
	}

	r, err := normalizeRole(in.Role)
	if err != nil {
		return nil, err
	}

	managerID := normalizeOptionalID(in.ManagerID)

	var created *User
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureEmailNotExists(txCtx, email); err != nil {
			return err
		}

		if managerID != nil {
			if err := s.ensureManager(txCtx, *managerID); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		u := &User{
			Email:        email,
			Username:     username,
			PasswordHash: in.PasswordHash,
			Role:         r,
			ManagerID:    managerID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		result, err := s.repo.Create(txCtx, u)
		if err != nil {
			return err
		}
		created = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// DeleteUser はユーザーを削除します。
func (s *Service) DeleteUser(ctx context.Context, in DeleteUserInput) error {
	if strings.TrimSpace(in.ID) == "" {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}
	return s.repo.Delete(ctx, strings.TrimSpace(in.ID))
}

// GetUser は ID でユーザーを取得します。
func (s *Service) GetUser(ctx context.Context, in GetUserInput) (*User, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	return s.repo.FindByID(ctx, strings.TrimSpace(in.ID))
}

// ListUsers はユーザーの一覧を取得します。
func (s *Service) ListUsers(ctx context.Context, in ListUsersInput) ([]*User, error) {
	limit, err := normalizeLimit(in.Limit)
	if err != nil {
		return nil, err
	}

	var rolePtr *role.Role
	if in.Role != nil {
		r, err := normalizeRole(*in.Role)
		if err != nil {
			return nil, err
		}
		rolePtr = &r
	}

	return s.repo.List(ctx, ListUsersFilter{
		Query: strings.TrimSpace(in.Query),
		Role:  rolePtr,
		Limit: limit,
	})
}

// ListManagers は Manager ロールのユーザーを取得します。
func (s *Service) ListManagers(ctx context.Context) ([]*User, error) {
	manager := role.Manager
	return s.ListUsers(ctx, ListUsersInput{Role: &manager, Limit: maxListLimit})
}

// ListDirectReports は指定された上長の直属の部下を取得します。
func (s *Service) ListDirectReports(ctx context.Context, managerID string) ([]*User, error) {
	if strings.TrimSpace(managerID) == "" {
		return nil, fmt.Errorf("manager id: %w", ErrInvalidID)
	}
	return s.repo.ListByManager(ctx, strings.TrimSpace(managerID))
}

func (s *Service) ensureEmailNotExists(ctx context.Context, email string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if existing != nil {
		return ErrEmailAlreadyExists
	}

	if s.others == nil {
		return nil
	}
	taken, err := s.others.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailAlreadyExists
	}
	return nil
}

func (s *Service) ensureManager(ctx context.Context, id string) error {
	manager, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrManagerNotFound
		}
		return err
	}
	if manager.Role != role.Manager {
		return ErrInvalidManager
	}
	return nil
}

// NormalizeEmail は前後の空白を除去し、小文字化したメールアドレスを返します。
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(addr.Address), nil
}

func normalizeRole(r role.Role) (role.Role, error) {
	switch r {
	case 0:
		return role.Employee, nil
	case role.Employee, role.Manager:
		return r, nil
	case role.Admin:
		return 0, ErrRoleNotAllowed
	default:
		return 0, ErrInvalidRole
	}
}

func normalizeOptionalID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeLimit(limit int) (int, error) {
	if limit <= 0 {
		return defaultListLimit, nil
	}
	if limit > maxListLimit {
		return 0, ErrInvalidLimit
	}
	return limit, nil
}
