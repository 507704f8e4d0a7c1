package admin

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// EmailRegistry は管理者以外のアカウント空間でメールアドレスが使用済みかを判定します。
type EmailRegistry interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// Service は管理者に関するユースケースをまとめます。
type Service struct {
	repo   Repository
	others EmailRegistry
	clock  Clock
}

// UseCase は管理者ユースケースの公開インターフェースです。
type UseCase interface {
	CreateAdmin(ctx context.Context, in CreateAdminInput) (*Admin, error)
	ListAdmins(ctx context.Context) ([]*Admin, error)
	CountAdmins(ctx context.Context) (int, error)
	CompanyCountry(ctx context.Context) (string, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, others EmailRegistry, clock Clock) *Service {
	if clock == nil {
		clock = realClock{}
	}
	return &Service{repo: repo, others: others, clock: clock}
}

// CreateAdminInput は管理者作成時の入力です。
type CreateAdminInput struct {
	Name         string
	Email        string
	PasswordHash string
	Country      string
}

// CreateAdmin は新しい管理者を作成します。
func (s *Service) CreateAdmin(ctx context.Context, in CreateAdminInput) (*Admin, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	if in.PasswordHash == "" {
		return nil, ErrInvalidPassword
	}

	if err := s.ensureEmailNotExists(ctx, email); err != nil {
		return nil, err
	}

	var country *string
	if c := strings.TrimSpace(in.Country); c != "" {
		country = &c
	}

	now := s.clock.Now()
	return s.repo.Create(ctx, &Admin{
		Name:         name,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Country:      country,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// ListAdmins は管理者の一覧を登録順に取得します。
func (s *Service) ListAdmins(ctx context.Context) ([]*Admin, error) {
	return s.repo.List(ctx)
}

// CountAdmins は管理者の件数を返します。
func (s *Service) CountAdmins(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// CompanyCountry は最初に登録された管理者の国を返します。未登録または国が未設定の場合は空文字を返します。
func (s *Service) CompanyCountry(ctx context.Context) (string, error) {
	first, err := s.repo.FindEarliest(ctx)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			return "", nil
		}
		return "", err
	}
	if first.Country == nil {
		return "", nil
	}
	return *first.Country, nil
}

func (s *Service) ensureEmailNotExists(ctx context.Context, email string) error {
	taken, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailAlreadyExists
	}

	if s.others == nil {
		return nil
	}
	taken, err = s.others.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailAlreadyExists
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
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
