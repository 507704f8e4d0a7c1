package admin

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s stubClock) Now() time.Time {
	return s.now
}

type fakeRepo struct {
	admins []*Admin
}

func (r *fakeRepo) Create(_ context.Context, a *Admin) (*Admin, error) {
	copy := *a
	copy.ID = "admin-" + strconv.Itoa(len(r.admins)+1)
	r.admins = append(r.admins, &copy)
	out := copy
	return &out, nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*Admin, error) {
	for _, a := range r.admins {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, ErrAdminNotFound
}

func (r *fakeRepo) FindByEmail(_ context.Context, email string) (*Admin, error) {
	for _, a := range r.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, ErrAdminNotFound
}

func (r *fakeRepo) FindBySessionToken(_ context.Context, tokenHash string) (*Admin, error) {
	for _, a := range r.admins {
		if a.SessionTokenHash != nil && *a.SessionTokenHash == tokenHash {
			return a, nil
		}
	}
	return nil, ErrAdminNotFound
}

func (r *fakeRepo) FindEarliest(_ context.Context) (*Admin, error) {
	if len(r.admins) == 0 {
		return nil, ErrAdminNotFound
	}
	return r.admins[0], nil
}

func (r *fakeRepo) UpdateSessionToken(_ context.Context, id string, tokenHash *string, _ time.Time) error {
	for _, a := range r.admins {
		if a.ID == id {
			a.SessionTokenHash = tokenHash
			return nil
		}
	}
	return ErrAdminNotFound
}

func (r *fakeRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	for _, a := range r.admins {
		if a.ID == id {
			a.PasswordHash = passwordHash
			a.SessionTokenHash = nil
			return nil
		}
	}
	return ErrAdminNotFound
}

func (r *fakeRepo) List(_ context.Context) ([]*Admin, error) {
	return append([]*Admin(nil), r.admins...), nil
}

func (r *fakeRepo) Count(_ context.Context) (int, error) {
	return len(r.admins), nil
}

func (r *fakeRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	a, _ := r.FindByEmail(ctx, email)
	return a != nil, nil
}

type stubRegistry map[string]bool

func (s stubRegistry) EmailExists(_ context.Context, email string) (bool, error) {
	return s[email], nil
}

func TestService_CreateAdmin(t *testing.T) {
	t.Parallel()

	clk := stubClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(&fakeRepo{}, nil, clk)

	created, err := svc.CreateAdmin(context.Background(), CreateAdminInput{
		Name:         " Owner ",
		Email:        "Owner@Example.com",
		PasswordHash: "hash",
		Country:      " Japan ",
	})
	if err != nil {
		t.Fatalf("CreateAdmin returned error: %v", err)
	}

	if created.Email != "owner@example.com" {
		t.Errorf("expected normalized email, got %s", created.Email)
	}
	if created.Name != "Owner" {
		t.Errorf("expected trimmed name, got %q", created.Name)
	}
	if created.Country == nil || *created.Country != "Japan" {
		t.Errorf("expected country Japan, got %+v", created.Country)
	}
	if created.CreatedAt != clk.now {
		t.Errorf("expected clock timestamp, got %v", created.CreatedAt)
	}
}

func TestService_CreateAdmin_DuplicateEmail(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeRepo{}, nil, nil)
	ctx := context.Background()

	if _, err := svc.CreateAdmin(ctx, CreateAdminInput{Name: "A", Email: "a@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateAdmin error: %v", err)
	}
	if _, err := svc.CreateAdmin(ctx, CreateAdminInput{Name: "B", Email: "A@example.com", PasswordHash: "h"}); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestService_CreateAdmin_EmailTakenByUser(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeRepo{}, stubRegistry{"staff@example.com": true}, nil)

	_, err := svc.CreateAdmin(context.Background(), CreateAdminInput{Name: "S", Email: "staff@example.com", PasswordHash: "h"})
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestService_CreateAdmin_Validation(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeRepo{}, nil, nil)
	ctx := context.Background()

	if _, err := svc.CreateAdmin(ctx, CreateAdminInput{Name: "A", Email: "bad", PasswordHash: "h"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.CreateAdmin(ctx, CreateAdminInput{Name: " ", Email: "a@example.com", PasswordHash: "h"}); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := svc.CreateAdmin(ctx, CreateAdminInput{Name: "A", Email: "a@example.com"}); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestService_CompanyCountry(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	country, err := svc.CompanyCountry(ctx)
	if err != nil || country != "" {
		t.Fatalf("expected empty country without admins, got %q %v", country, err)
	}

	if _, err := svc.CreateAdmin(ctx, CreateAdminInput{Name: "First", Email: "first@example.com", PasswordHash: "h", Country: "Germany"}); err != nil {
		t.Fatalf("CreateAdmin error: %v", err)
	}
	if _, err := svc.CreateAdmin(ctx, CreateAdminInput{Name: "Second", Email: "second@example.com", PasswordHash: "h", Country: "Japan"}); err != nil {
		t.Fatalf("CreateAdmin error: %v", err)
	}

	country, err = svc.CompanyCountry(ctx)
	if err != nil {
		t.Fatalf("CompanyCountry error: %v", err)
	}
	if country != "Germany" {
		t.Fatalf("expected first admin country, got %q", country)
	}

	count, err := svc.CountAdmins(ctx)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 admins, got %d %v", count, err)
	}
}
