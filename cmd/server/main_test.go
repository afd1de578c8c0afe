package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"posledger/backend/internal/config"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/service"
	"posledger/backend/internal/store/memory"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{"weak secret", config.Config{AuthSecret: "short", DBDriver: config.DriverMemory, SaleCacheTTLSeconds: 60}, "AUTH_SECRET"},
		{"unknown driver", config.Config{AuthSecret: strongSecret, DBDriver: "oracle", SaleCacheTTLSeconds: 60}, "unknown DB_DRIVER"},
		{"postgres without url", config.Config{AuthSecret: strongSecret, DBDriver: config.DriverPostgres, SaleCacheTTLSeconds: 60}, "DATABASE_URL"},
		{"sqlite without url", config.Config{AuthSecret: strongSecret, DBDriver: config.DriverSQLite, SaleCacheTTLSeconds: 60}, "DATABASE_URL"},
		{"short bootstrap password", config.Config{AuthSecret: strongSecret, DBDriver: config.DriverMemory, SaleCacheTTLSeconds: 60, BootstrapAdminUser: "owner", BootstrapAdminPass: "short"}, "BOOTSTRAP_ADMIN_PASSWORD"},
		{"zero cache ttl", config.Config{AuthSecret: strongSecret, DBDriver: config.DriverMemory}, "SALE_CACHE_TTL_SECONDS"},
		{"memory", config.Config{AuthSecret: strongSecret, DBDriver: config.DriverMemory, SaleCacheTTLSeconds: 60}, ""},
		{"mysql", config.Config{AuthSecret: strongSecret, DBDriver: config.DriverMySQL, DatabaseURL: "pos:pos@tcp(localhost:3306)/pos?parseTime=true", SaleCacheTTLSeconds: 60}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateConfig(tc.cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := newLogger(config.Config{LogLevel: "chatty"})
	assert.Error(t, err)

	logger, err := newLogger(config.Config{LogLevel: "debug", AppEnv: "development"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestOpenRepositoryFallsBackToSeededMemory(t *testing.T) {
	repo, err := openRepository(context.Background(), config.Config{DBDriver: config.DriverMemory}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, repo)

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, products)
}

func TestOpenRepositorySQLiteAutoMigrates(t *testing.T) {
	cfg := config.Config{
		DBDriver:      config.DriverSQLite,
		DatabaseURL:   "file:main-test?mode=memory&cache=shared",
		DBAutoMigrate: true,
	}
	repo, err := openRepository(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestBootstrapAdminCreatesAccountOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := service.New(repo, nil, time.Minute, zaptest.NewLogger(t))
	cfg := config.Config{BootstrapAdminUser: "Owner", BootstrapAdminPass: "pemilik-toko-1"}

	require.NoError(t, bootstrapAdmin(ctx, svc, cfg, zaptest.NewLogger(t)))
	require.NoError(t, bootstrapAdmin(ctx, svc, cfg, zaptest.NewLogger(t)))

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "owner", users[0].Username)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
	assert.True(t, users[0].Active)

	require.NoError(t, bootstrapAdmin(ctx, svc, config.Config{}, zaptest.NewLogger(t)))
}
