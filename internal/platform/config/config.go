package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	DBMaxConns         int
	JWTSecret          string
	DataEncryptionKey  string
	Environment        string
	SeedAdminEmail     string
	SeedAdminPassword  string
	RunMigrations      bool
	RunSeed            bool
	MaxBodyBytes       int64
	RateLimitPerMinute int
	MetricsEnabled     bool
	AllowedOrigins     []string
	CompanyName        string
	CompanyABN         string
	IdempotencyTTL     time.Duration
	MaintenanceEvery   time.Duration
	Access             Access
}

// Access lists the roles allowed at each permission tier. It is parsed once
// at startup and handed to the HTTP layer.
type Access struct {
	ReadRoles     []string
	WriteRoles    []string
	FinalizeRoles []string
}

func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("dotenv load failed", "err", err)
	}
	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		DataEncryptionKey:  getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:        getEnv("APP_ENV", "development"),
		SeedAdminEmail:     getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:  getEnv("SEED_ADMIN_PASSWORD", ""),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:            getEnvBool("RUN_SEED", true),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		CompanyName:        getEnv("COMPANY_NAME", "WorkLog Transport"),
		CompanyABN:         getEnv("COMPANY_ABN", ""),
		IdempotencyTTL:     time.Duration(getEnvInt("IDEMPOTENCY_TTL_HOURS", 72)) * time.Hour,
		MaintenanceEvery:   time.Duration(getEnvInt("MAINTENANCE_INTERVAL_MINUTES", 60)) * time.Minute,
		Access: Access{
			ReadRoles:     getEnvList("ACCESS_READ_ROLES", []string{"admin", "manager", "viewer"}),
			WriteRoles:    getEnvList("ACCESS_WRITE_ROLES", []string{"admin", "manager"}),
			FinalizeRoles: getEnvList("ACCESS_FINALIZE_ROLES", []string{"admin"}),
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return SplitList(value)
}

// SplitList splits a comma separated value, dropping blanks and lowercasing.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Environment == "production" {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be set or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.IdempotencyTTL < 0 || c.MaintenanceEvery < 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL_HOURS and MAINTENANCE_INTERVAL_MINUTES must not be negative")
	}
	if len(c.Access.FinalizeRoles) == 0 {
		return fmt.Errorf("ACCESS_FINALIZE_ROLES must name at least one role")
	}
	return nil
}
