package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"posledger/backend/internal/cache"
	"posledger/backend/internal/config"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/httpapi"
	"posledger/backend/internal/seed"
	"posledger/backend/internal/service"
	"posledger/backend/internal/store"
	"posledger/backend/internal/store/gormstore"
	"posledger/backend/internal/store/memory"
	pgstore "posledger/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("repository unavailable", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	closers := []func() error{repo.Close}

	if cfg.SeedDemoData && cfg.DBDriver != config.DriverMemory {
		if err := seed.Demo(ctx, repo, logger); err != nil {
			logger.Fatal("seed demo data", zap.Error(err))
		}
		logger.Info("demo data seeded")
	}

	saleCache := cache.SaleCache(cache.NoopSaleCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSaleCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop cache", zap.Error(err))
			_ = redisCache.Close()
		} else {
			saleCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Info("cache: noop")
	}

	svc := service.New(repo, saleCache, time.Duration(cfg.SaleCacheTTLSeconds)*time.Second, logger.Named("service"))
	if err := bootstrapAdmin(ctx, svc, cfg, logger); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.ListLimitMax, logger.Named("http"))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("POS ledger listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.DBAutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
		}
		logger.Info("repository: postgres")
		return pg, nil

	case config.DriverMySQL, config.DriverSQLite:
		var (
			gs  *gormstore.Store
			err error
		)
		if cfg.DBDriver == config.DriverMySQL {
			gs, err = gormstore.OpenMySQL(ctx, cfg.DatabaseURL, logger.Named("gorm"))
		} else {
			gs, err = gormstore.OpenSQLite(cfg.DatabaseURL, logger.Named("gorm"))
		}
		if err != nil {
			return nil, err
		}
		if cfg.DBAutoMigrate {
			if err := gs.AutoMigrate(ctx); err != nil {
				_ = gs.Close()
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		logger.Info("repository: gorm", zap.String("dialect", cfg.DBDriver))
		return gs, nil

	default:
		logger.Warn("repository: in-memory, data is lost on restart")
		return memory.NewSeeded(logger.Named("seed")), nil
	}
}

// bootstrapAdmin creates the configured admin account once. An existing
// account with that username is left untouched.
func bootstrapAdmin(ctx context.Context, svc *service.Service, cfg config.Config, logger *zap.Logger) error {
	if cfg.BootstrapAdminUser == "" {
		return nil
	}
	user, err := svc.CreateUser(ctx, domain.UserCreateRequest{
		Username: cfg.BootstrapAdminUser,
		Password: cfg.BootstrapAdminPass,
		FullName: "Administrator",
		Role:     domain.RoleAdmin,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("bootstrap admin created", zap.String("username", user.Username))
	return nil
}

func validateConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return errors.New("AUTH_SECRET must be set and at least 32 characters")
	}
	switch cfg.DBDriver {
	case config.DriverPostgres, config.DriverMySQL, config.DriverSQLite:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for DB_DRIVER=%s", cfg.DBDriver)
		}
	case config.DriverMemory:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.BootstrapAdminUser != "" && len(cfg.BootstrapAdminPass) < 8 {
		return errors.New("BOOTSTRAP_ADMIN_PASSWORD must be at least 8 characters")
	}
	if cfg.SaleCacheTTLSeconds < 1 {
		return errors.New("SALE_CACHE_TTL_SECONDS must be positive")
	}
	return nil
}
