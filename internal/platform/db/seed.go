package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"worklog/internal/domain/auth"
	"worklog/internal/platform/config"
)

// Seed creates the bootstrap admin account when credentials are configured.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if strings.TrimSpace(cfg.SeedAdminEmail) == "" || strings.TrimSpace(cfg.SeedAdminPassword) == "" {
		return nil
	}
	return auth.NewStore(pool).EnsureUser(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword, auth.RoleAdmin)
}
