package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const TokenTTL = 12 * time.Hour

type UserFinder interface {
	FindActiveUserByEmail(ctx context.Context, email string) (User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
}

type Service struct {
	Store  UserFinder
	Secret string
}

func NewService(store UserFinder, secret string) *Service {
	return &Service{Store: store, Secret: secret}
}

// Login checks the credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	user, err := s.Store.FindActiveUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, pgx.ErrNoRows) {
		return "", User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", User{}, err
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return "", User{}, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.Secret, Claims{UserID: user.ID, Email: user.Email, RoleName: user.Role}, TokenTTL)
	if err != nil {
		return "", User{}, err
	}
	if err := s.Store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("last login update failed", "userId", user.ID, "err", err)
	}
	return token, user, nil
}
