package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/codex-expense-approval/internal/core/admin"
	"github.com/ogurasousui/codex-expense-approval/internal/core/role"
	"github.com/ogurasousui/codex-expense-approval/internal/core/user"
)

type fakeAdmins struct {
	mu         sync.Mutex
	admins     []*admin.Admin
	err        error
	countDelay time.Duration
}

func (f *fakeAdmins) Create(_ context.Context, a *admin.Admin) (*admin.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *a
	copy.ID = "admin-" + strconv.Itoa(len(f.admins)+1)
	f.admins = append(f.admins, &copy)
	out := copy
	return &out, nil
}

func (f *fakeAdmins) find(match func(*admin.Admin) bool) (*admin.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.admins {
		if match(a) {
			out := *a
			return &out, nil
		}
	}
	return nil, admin.ErrAdminNotFound
}

func (f *fakeAdmins) FindByID(_ context.Context, id string) (*admin.Admin, error) {
	return f.find(func(a *admin.Admin) bool { return a.ID == id })
}

func (f *fakeAdmins) FindByEmail(_ context.Context, email string) (*admin.Admin, error) {
	return f.find(func(a *admin.Admin) bool { return a.Email == email })
}

func (f *fakeAdmins) FindBySessionToken(_ context.Context, tokenHash string) (*admin.Admin, error) {
	return f.find(func(a *admin.Admin) bool { return a.SessionTokenHash != nil && *a.SessionTokenHash == tokenHash })
}

func (f *fakeAdmins) FindEarliest(context.Context) (*admin.Admin, error) {
	return f.find(func(*admin.Admin) bool { return true })
}

func (f *fakeAdmins) update(id string, fn func(*admin.Admin)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.admins {
		if a.ID == id {
			fn(a)
			return nil
		}
	}
	return admin.ErrAdminNotFound
}

func (f *fakeAdmins) UpdateSessionToken(_ context.Context, id string, tokenHash *string, _ time.Time) error {
	return f.update(id, func(a *admin.Admin) { a.SessionTokenHash = tokenHash })
}

func (f *fakeAdmins) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	return f.update(id, func(a *admin.Admin) {
		a.PasswordHash = passwordHash
		a.SessionTokenHash = nil
	})
}

func (f *fakeAdmins) List(context.Context) ([]*admin.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*admin.Admin(nil), f.admins...), nil
}

func (f *fakeAdmins) Count(context.Context) (int, error) {
	f.mu.Lock()
	n := len(f.admins)
	f.mu.Unlock()
	time.Sleep(f.countDelay)
	return n, nil
}

func (f *fakeAdmins) EmailExists(ctx context.Context, email string) (bool, error) {
	a, _ := f.FindByEmail(ctx, email)
	return a != nil, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users []*user.User
}

func (f *fakeUsers) Create(_ context.Context, u *user.User) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *u
	copy.ID = "user-" + strconv.Itoa(len(f.users)+1)
	f.users = append(f.users, &copy)
	out := copy
	return &out, nil
}

func (f *fakeUsers) find(match func(*user.User) bool) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUsers) Delete(context.Context, string) error { return nil }

func (f *fakeUsers) FindByID(_ context.Context, id string) (*user.User, error) {
	return f.find(func(u *user.User) bool { return u.ID == id })
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	return f.find(func(u *user.User) bool { return u.Email == email })
}

func (f *fakeUsers) FindBySessionToken(_ context.Context, tokenHash string) (*user.User, error) {
	return f.find(func(u *user.User) bool { return u.SessionTokenHash != nil && *u.SessionTokenHash == tokenHash })
}

func (f *fakeUsers) update(id string, fn func(*user.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			fn(u)
			return nil
		}
	}
	return user.ErrUserNotFound
}

func (f *fakeUsers) UpdateSessionToken(_ context.Context, id string, tokenHash *string, _ time.Time) error {
	return f.update(id, func(u *user.User) { u.SessionTokenHash = tokenHash })
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	return f.update(id, func(u *user.User) {
		u.PasswordHash = passwordHash
		u.SessionTokenHash = nil
	})
}

func (f *fakeUsers) List(context.Context, user.ListUsersFilter) ([]*user.User, error) {
	return nil, nil
}

func (f *fakeUsers) ListByManager(context.Context, string) ([]*user.User, error) {
	return nil, nil
}

func (f *fakeUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	u, _ := f.FindByEmail(ctx, email)
	return u != nil, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixedTokens struct {
	session  string
	password string
}

func (f fixedTokens) SessionToken() (string, error)      { return f.session, nil }
func (f fixedTokens) TemporaryPassword() (string, error) { return f.password, nil }

type harness struct {
	svc    *Service
	admins *fakeAdmins
	users  *fakeUsers
	mailer *recordingMailer
}

func newHarness(tokens TokenGenerator) *harness {
	mailer := &recordingMailer{}
	h := newHarnessWithMailer(tokens, mailer)
	h.mailer = mailer
	return h
}

func newHarnessWithMailer(tokens TokenGenerator, mailer Mailer) *harness {
	admins := &fakeAdmins{}
	users := &fakeUsers{}
	svc := NewService(Deps{
		Admins:   admins,
		Users:    users,
		AdminSvc: admin.NewService(admins, users, nil),
		UserSvc:  user.NewService(users, admins, nil, nil),
		Mailer:   mailer,
		Tokens:   tokens,
	})
	return &harness{svc: svc, admins: admins, users: users}
}

func TestService_Register_FirstAccountBecomesAdmin(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	ctx := context.Background()

	first, err := h.svc.Register(ctx, RegisterInput{Name: "Owner", Email: "owner@example.com", Password: "secret-pass", Country: "Japan"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if first.Role != role.Admin || first.Country != "Japan" {
		t.Fatalf("expected first registration to be Admin in Japan, got %+v", first)
	}

	second, err := h.svc.Register(ctx, RegisterInput{Name: "Staff", Email: "staff@example.com", Password: "secret-pass"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if second.Role != role.Employee {
		t.Fatalf("expected later registration to be Employee, got %v", second.Role)
	}
}

// lockingTx は LockRegistration で取得したロックを WithinReadWrite の終了時に解放します。
type lockingTx struct {
	mu    sync.Mutex
	locks int
}

type releaseKey struct{}

func (l *lockingTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (l *lockingTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	var release func()
	err := fn(context.WithValue(ctx, releaseKey{}, &release))
	if release != nil {
		release()
	}
	return err
}

func (l *lockingTx) LockRegistration(ctx context.Context) error {
	release, ok := ctx.Value(releaseKey{}).(*func())
	if !ok {
		return errors.New("lock outside transaction")
	}
	l.mu.Lock()
	l.locks++
	*release = l.mu.Unlock
	return nil
}

func TestService_Register_ConcurrentFirstRegistrationsCreateOneAdmin(t *testing.T) {
	t.Parallel()

	admins := &fakeAdmins{countDelay: 20 * time.Millisecond}
	users := &fakeUsers{}
	tx := &lockingTx{}
	svc := NewService(Deps{
		Admins:   admins,
		Users:    users,
		AdminSvc: admin.NewService(admins, users, nil),
		UserSvc:  user.NewService(users, admins, nil, nil),
		Mailer:   &recordingMailer{},
		Tx:       tx,
		Locker:   tx,
	})

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(context.Background(), RegisterInput{
				Name:     "Person " + strconv.Itoa(i),
				Email:    "person" + strconv.Itoa(i) + "@example.com",
				Password: "secret-pass",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
	}
	if got, _ := admins.Count(context.Background()); got != 1 {
		t.Fatalf("expected exactly one admin, got %d", got)
	}
	if tx.locks != n {
		t.Fatalf("expected %d lock acquisitions, got %d", n, tx.locks)
	}
}

func TestService_Register_LockFailureAborts(t *testing.T) {
	t.Parallel()

	admins := &fakeAdmins{}
	users := &fakeUsers{}
	svc := NewService(Deps{
		Admins:   admins,
		Users:    users,
		AdminSvc: admin.NewService(admins, users, nil),
		UserSvc:  user.NewService(users, admins, nil, nil),
		Locker:   &lockingTx{},
	})

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Owner", Email: "owner@example.com", Password: "secret-pass"})
	if err == nil || !strings.Contains(err.Error(), "lock outside transaction") {
		t.Fatalf("expected lock failure, got %v", err)
	}
	if got, _ := admins.Count(context.Background()); got != 0 {
		t.Fatalf("expected no admin after lock failure, got %d", got)
	}
}

func TestService_Register_DuplicateEmailRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	ctx := context.Background()

	if _, err := h.svc.Register(ctx, RegisterInput{Name: "Owner", Email: "owner@example.com", Password: "secret-pass"}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, err := h.svc.Register(ctx, RegisterInput{Name: "Again", Email: "OWNER@example.com", Password: "secret-pass"})
	if !errors.Is(err, user.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}

	if _, err := h.svc.Register(ctx, RegisterInput{Name: "Short", Email: "short@example.com", Password: "123"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestService_LoginResolveLogout(t *testing.T) {
	t.Parallel()

	h := newHarness(fixedTokens{session: "session-token", password: "TempPassword1"})
	ctx := context.Background()

	if _, err := h.svc.Register(ctx, RegisterInput{Name: "Owner", Email: "owner@example.com", Password: "secret-pass"}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if _, err := h.svc.Login(ctx, LoginInput{Email: "owner@example.com", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := h.svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "secret-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	session, err := h.svc.Login(ctx, LoginInput{Email: " Owner@Example.com ", Password: "secret-pass"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if session.Token != "session-token" || session.Identity.Role != role.Admin {
		t.Fatalf("unexpected session %+v", session)
	}

	resolver := NewResolver(h.admins, h.users)
	id, err := resolver.Resolve(ctx, session.Token)
	if err != nil || id == nil || id.Email != "owner@example.com" {
		t.Fatalf("expected resolved admin, got %+v %v", id, err)
	}

	if err := h.svc.Logout(ctx, id); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	id, err = resolver.Resolve(ctx, session.Token)
	if err != nil || id != nil {
		t.Fatalf("expected anonymous after logout, got %+v %v", id, err)
	}
}

func TestService_ProvisionUserAndForgotPassword(t *testing.T) {
	t.Parallel()

	h := newHarness(fixedTokens{session: "tok", password: "TempPassword1"})
	ctx := context.Background()

	result, err := h.svc.ProvisionUser(ctx, ProvisionUserInput{Email: "new@example.com", Username: "Newbie", Role: role.Manager})
	if err != nil {
		t.Fatalf("ProvisionUser returned error: %v", err)
	}
	if !result.Delivered || result.User.Role != role.Manager {
		t.Fatalf("unexpected provision result %+v", result)
	}
	if len(h.mailer.sent) != 1 || !strings.Contains(h.mailer.sent[0].Text, "TempPassword1") {
		t.Fatalf("expected temporary password mail, got %+v", h.mailer.sent)
	}

	session, err := h.svc.Login(ctx, LoginInput{Email: "new@example.com", Password: "TempPassword1"})
	if err != nil {
		t.Fatalf("Login with temporary password failed: %v", err)
	}
	if session.Identity.Role != role.Manager {
		t.Fatalf("expected Manager identity, got %v", session.Identity.Role)
	}

	if err := h.svc.ForgotPassword(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("ForgotPassword for unknown email returned error: %v", err)
	}
	if len(h.mailer.sent) != 1 {
		t.Fatalf("expected no mail for unknown email")
	}

	if err := h.svc.ForgotPassword(ctx, "NEW@example.com"); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	if len(h.mailer.sent) != 2 || h.mailer.sent[1].To != "new@example.com" {
		t.Fatalf("expected reset mail, got %+v", h.mailer.sent)
	}

	resolved, err := NewResolver(h.admins, h.users).Resolve(ctx, session.Token)
	if err != nil || resolved != nil {
		t.Fatalf("expected session invalidated by reset, got %+v %v", resolved, err)
	}
}

func TestService_SendTemporaryPassword_DeliveryFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(fixedTokens{session: "tok", password: "TempPassword1"})
	ctx := context.Background()

	result, err := h.svc.ProvisionUser(ctx, ProvisionUserInput{Email: "e@example.com", Username: "E"})
	if err != nil {
		t.Fatalf("ProvisionUser returned error: %v", err)
	}

	h.mailer.err = errors.New("smtp down")
	delivered, err := h.svc.SendTemporaryPassword(ctx, result.User.ID)
	if err != nil {
		t.Fatalf("SendTemporaryPassword returned error: %v", err)
	}
	if delivered {
		t.Fatalf("expected delivery failure to be reported")
	}

	if _, err := h.svc.SendTemporaryPassword(ctx, "user-404"); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
