// Package handler は HTTP ルーティングとリクエストハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ogurasousui/codex-expense-approval/internal/adapters/storage/minio"
	"github.com/ogurasousui/codex-expense-approval/internal/core/admin"
	"github.com/ogurasousui/codex-expense-approval/internal/core/approval"
	"github.com/ogurasousui/codex-expense-approval/internal/core/auth"
	"github.com/ogurasousui/codex-expense-approval/internal/core/role"
	"github.com/ogurasousui/codex-expense-approval/internal/core/user"
)

const sessionCookieName = "session_token"

// Authenticator は認証とアカウント発行のユースケースです。
type Authenticator interface {
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
	Logout(ctx context.Context, id *auth.Identity) error
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Identity, error)
	ProvisionUser(ctx context.Context, in auth.ProvisionUserInput) (*auth.ProvisionResult, error)
	SendTemporaryPassword(ctx context.Context, userID string) (bool, error)
	ForgotPassword(ctx context.Context, email string) error
}

// SessionResolver はセッショントークンから主体を解決します。
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*auth.Identity, error)
}

// CurrencyService は国の通貨と為替換算を提供します。
type CurrencyService interface {
	CountryCurrency(ctx context.Context, country string) (string, bool)
	Countries(ctx context.Context) []string
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, bool)
}

// ReceiptStore は領収書を保存し、記録するファイル名を返します。
type ReceiptStore interface {
	Save(ctx context.Context, r minio.Receipt) (string, error)
}

// Pinger は依存先の疎通を確認します。
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPObserver はリクエストのメトリクスを記録します。
type HTTPObserver interface {
	InFlight() func()
	ObserveHTTP(method, path, status string, d time.Duration)
}

// Options はルーターの挙動に関する設定です。
type Options struct {
	CookieSecure bool
	MaxBodyBytes int64
	// BaseCurrency は会社の基準通貨の固定値です。空の場合は管理者の国から導出します。
	BaseCurrency  string
	RatePerSecond float64
	RateBurst     int
}

// Deps はルーターの依存関係です。Receipts, Ready, Metrics, MetricsHandler は省略できます。
type Deps struct {
	Auth           Authenticator
	Sessions       SessionResolver
	Users          user.UseCase
	Admins         admin.UseCase
	Approvals      approval.UseCase
	Currency       CurrencyService
	Receipts       ReceiptStore
	Ready          Pinger
	Metrics        HTTPObserver
	MetricsHandler http.Handler
	Logger         *zap.Logger
	Options        Options
}

// Handler は全ルートのハンドラーを保持します。
type Handler struct {
	auth      Authenticator
	sessions  SessionResolver
	users     user.UseCase
	admins    admin.UseCase
	approvals approval.UseCase
	currency  CurrencyService
	enricher  *approval.Enricher
	receipts  ReceiptStore
	ready     Pinger
	metrics   HTTPObserver
	logger    *zap.Logger
	validate  *validator.Validate
	forms     *form.Decoder
	opts      Options
}

// NewRouter は全ルートを登録した http.Handler を返します。
func NewRouter(d Deps) http.Handler {
	h := &Handler{
		auth:      d.Auth,
		sessions:  d.Sessions,
		users:     d.Users,
		admins:    d.Admins,
		approvals: d.Approvals,
		currency:  d.Currency,
		receipts:  d.Receipts,
		ready:     d.Ready,
		metrics:   d.Metrics,
		logger:    d.Logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		forms:     newFormDecoder(),
		opts:      d.Options,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.receipts == nil {
		h.receipts = minio.NameOnlyStore{}
	}
	h.enricher = approval.NewEnricher(d.Currency)
	h.opts.BaseCurrency = strings.ToUpper(strings.TrimSpace(h.opts.BaseCurrency))

	r := mux.NewRouter()
	r.Use(h.requestLogger, h.observe, h.limitBody, h.session)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler).Methods(http.MethodGet)
	}

	limiter := newIPRateLimiter(h.opts.RatePerSecond, h.opts.RateBurst)
	r.HandleFunc("/", h.home).Methods(http.MethodGet)
	r.HandleFunc("/register", h.registerView).Methods(http.MethodGet)
	r.Handle("/register", limiter.wrap(h, h.register)).Methods(http.MethodPost)
	r.HandleFunc("/login", h.loginView).Methods(http.MethodGet)
	r.Handle("/login", limiter.wrap(h, h.login)).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.logout).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/forgot-password", h.forgotPasswordView).Methods(http.MethodGet)
	r.Handle("/forgot-password", limiter.wrap(h, h.forgotPassword)).Methods(http.MethodPost)

	adminRoutes := r.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(h.Require(role.Admin))
	adminRoutes.HandleFunc("/overview", h.adminOverview).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/users", h.adminListUsers).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/users/create", h.adminCreateUser).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/users/{id}/delete", h.adminDeleteUser).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/users/{id}/send-password", h.adminSendPassword).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/approval-rules", h.adminListRules).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/approval-rules", h.adminCreateRule).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/expenses", h.adminListExpenses).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/expenses/{id}/override", h.adminOverride).Methods(http.MethodPost)

	employeeRoutes := r.PathPrefix("/employee").Subrouter()
	employeeRoutes.Use(h.Require(role.Employee))
	employeeRoutes.HandleFunc("/dashboard", h.employeeDashboard).Methods(http.MethodGet)
	employeeRoutes.HandleFunc("/submit", h.employeeSubmitView).Methods(http.MethodGet)
	employeeRoutes.HandleFunc("/submit", h.employeeSubmit).Methods(http.MethodPost)
	employeeRoutes.HandleFunc("/api/approvals", h.employeeAPIList).Methods(http.MethodGet)
	employeeRoutes.HandleFunc("/api/approvals", h.employeeAPICreate).Methods(http.MethodPost)

	managerRoutes := r.PathPrefix("/manager").Subrouter()
	managerRoutes.Use(h.Require(role.Manager))
	managerRoutes.HandleFunc("/dashboard", h.managerDashboard).Methods(http.MethodGet)
	managerRoutes.HandleFunc("/approvals/{id}/approve", h.managerDecideForm(approval.ActionApprove)).Methods(http.MethodPost)
	managerRoutes.HandleFunc("/approvals/{id}/reject", h.managerDecideForm(approval.ActionReject)).Methods(http.MethodPost)
	managerRoutes.HandleFunc("/api/approvals", h.managerAPIList).Methods(http.MethodGet)
	managerRoutes.HandleFunc("/api/approvals/{id}/decide", h.managerAPIDecide).Methods(http.MethodPost)
	managerRoutes.HandleFunc("/api/approvals/{id}/escalate", h.managerAPIEscalate).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{"ok": false, "error": "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{"ok": false, "error": "method not allowed"})
	})

	return h.recoverer(r)
}

// homeFor はロールごとのトップページを返します。
func homeFor(r role.Role) string {
	switch r {
	case role.Admin:
		return "/admin/users"
	case role.Manager:
		return "/manager/dashboard"
	default:
		return "/employee/dashboard"
	}
}

// baseCurrency は表示に用いる会社の基準通貨を返します。決められない場合は空文字です。
func (h *Handler) baseCurrency(ctx context.Context, id *auth.Identity) string {
	if h.opts.BaseCurrency != "" {
		return h.opts.BaseCurrency
	}
	if h.currency == nil {
		return ""
	}

	country := ""
	if id != nil && id.Role == role.Admin {
		country = id.Country
	}
	if country == "" && h.admins != nil {
		c, err := h.admins.CompanyCountry(ctx)
		if err != nil {
			h.logger.Warn("resolve company country", zap.Error(err))
			return ""
		}
		country = c
	}
	if country == "" {
		return ""
	}
	code, _ := h.currency.CountryCurrency(ctx, country)
	return code
}

func identity(r *http.Request) *auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}
