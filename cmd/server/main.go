package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	rediscache "github.com/ogurasousui/codex-expense-approval/internal/adapters/cache/redis"
	"github.com/ogurasousui/codex-expense-approval/internal/adapters/currencyapi"
	"github.com/ogurasousui/codex-expense-approval/internal/adapters/http/handler"
	"github.com/ogurasousui/codex-expense-approval/internal/adapters/mail"
	"github.com/ogurasousui/codex-expense-approval/internal/adapters/repository/postgres"
	"github.com/ogurasousui/codex-expense-approval/internal/adapters/storage/minio"
	"github.com/ogurasousui/codex-expense-approval/internal/core/admin"
	"github.com/ogurasousui/codex-expense-approval/internal/core/approval"
	"github.com/ogurasousui/codex-expense-approval/internal/core/auth"
	"github.com/ogurasousui/codex-expense-approval/internal/core/currency"
	"github.com/ogurasousui/codex-expense-approval/internal/core/user"
	"github.com/ogurasousui/codex-expense-approval/internal/platform/config"
	pg "github.com/ogurasousui/codex-expense-approval/internal/platform/db/postgres"
	"github.com/ogurasousui/codex-expense-approval/internal/platform/logging"
	"github.com/ogurasousui/codex-expense-approval/internal/platform/metrics"
	"github.com/ogurasousui/codex-expense-approval/internal/platform/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	dbPool, err := pg.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database pool: %w", err)
	}
	defer dbPool.Close()

	m := metrics.New()
	txManager := pg.NewTransactionManager(dbPool)

	userRepo := postgres.NewUserRepository(dbPool)
	adminRepo := postgres.NewAdminRepository(dbPool)
	approvalRepo := postgres.NewApprovalRepository(dbPool)
	ruleRepo := postgres.NewRuleRepository(dbPool)

	userSvc := user.NewService(userRepo, adminRepo, nil, txManager)
	adminSvc := admin.NewService(adminRepo, userRepo, nil)
	approvalSvc := approval.NewService(approvalRepo, ruleRepo, nil,
		approval.WithLogger(logger.Named("approval")),
		approval.WithObserver(m),
		approval.WithTransactionManager(txManager),
	)

	currencySvc, err := newCurrencyService(ctx, cfg, logger, m)
	if err != nil {
		return err
	}

	receipts, err := newReceiptStore(ctx, cfg.MinIO, logger)
	if err != nil {
		return err
	}

	var mailer auth.Mailer = mail.NewLogMailer(logger.Named("mail"))
	if cfg.SMTP.Enabled() {
		mailer = mail.NewSMTPMailer(cfg.SMTP)
	}

	authSvc := auth.NewService(auth.Deps{
		Admins:   adminRepo,
		Users:    userRepo,
		AdminSvc: adminSvc,
		UserSvc:  userSvc,
		Mailer:   mailer,
		Tx:       txManager,
		Locker:   adminRepo,
		Logger:   logger.Named("auth"),
	})

	router := handler.NewRouter(handler.Deps{
		Auth:           authSvc,
		Sessions:       auth.NewResolver(adminRepo, userRepo),
		Users:          userSvc,
		Admins:         adminSvc,
		Approvals:      approvalSvc,
		Currency:       currencySvc,
		Receipts:       receipts,
		Ready:          dbPool,
		Metrics:        m,
		MetricsHandler: m.Handler(),
		Logger:         logger.Named("http"),
		Options: handler.Options{
			CookieSecure:  cfg.Server.CookieSecure,
			MaxBodyBytes:  cfg.Server.MaxBodyBytes,
			BaseCurrency:  cfg.Company.BaseCurrency,
			RatePerSecond: cfg.RateLimit.PerSecond,
			RateBurst:     cfg.RateLimit.Burst,
		},
	})

	srv := server.New(cfg.Server, router, logger.Named("server"))
	srv.SetServing(true)

	return srv.Run(ctx)
}

func newCurrencyService(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*currency.Service, error) {
	client := currencyapi.New(currencyapi.Config{
		CountriesURL: cfg.Currency.CountriesURL,
		RatesURL:     cfg.Currency.RatesURL,
		UserAgent:    cfg.Currency.UserAgent,
		Timeout:      cfg.Currency.Timeout,
	}, nil)

	var cache currency.RateCache = currency.NewMemoryRateCache(cfg.Currency.RatesTTL, nil)
	if cfg.Redis.Enabled() {
		rdb, err := rediscache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cache = rediscache.NewRateCache(rdb, cfg.Currency.RatesTTL, logger.Named("rate_cache"))
	}

	return currency.NewService(client, client,
		currency.WithRateCache(cache),
		currency.WithObserver(m),
		currency.WithLogger(logger.Named("currency")),
	), nil
}

func newReceiptStore(ctx context.Context, cfg config.MinIOConfig, logger *zap.Logger) (handler.ReceiptStore, error) {
	if !cfg.Enabled() {
		return minio.NameOnlyStore{}, nil
	}
	store, err := minio.NewReceiptStore(cfg, logger.Named("receipts"))
	if err != nil {
		return nil, fmt.Errorf("initialize receipt store: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure receipt bucket: %w", err)
	}
	return store, nil
}
