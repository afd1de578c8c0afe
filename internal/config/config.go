package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Port                  string
	AppEnv                string
	LogLevel              string
	AllowedOrigin         string
	DBDriver              string
	DatabaseURL           string
	DBAutoMigrate         bool
	SeedDemoData          bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	SaleCacheTTLSeconds   int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ListLimitMax          int
	BootstrapAdminUser    string
	BootstrapAdminPass    string
}

// Load reads a .env file when one exists and then the process environment.
// Variables already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = DriverMemory
		if databaseURL != "" {
			driver = DriverPostgres
		}
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AppEnv:                strings.ToLower(getEnv("APP_ENV", "production")),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigin:         os.Getenv("ALLOWED_ORIGIN"),
		DBDriver:              driver,
		DatabaseURL:           databaseURL,
		DBAutoMigrate:         getBool("DB_AUTO_MIGRATE", false),
		SeedDemoData:          getBool("SEED_DEMO_DATA", false),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getInt("REDIS_DB", 0, 0),
		SaleCacheTTLSeconds:   getInt("SALE_CACHE_TTL_SECONDS", 60, 1),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		ListLimitMax:          getInt("LIST_LIMIT_MAX", 500, 1),
		BootstrapAdminUser:    strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_USERNAME")),
		BootstrapAdminPass:    os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev" || c.AppEnv == "local"
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getInt falls back when the value is missing, malformed or below min.
func getInt(key string, fallback int, min int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || parsed < min {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return parsed
}
