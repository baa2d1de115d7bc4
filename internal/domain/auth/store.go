package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"

	"worklog/internal/platform/querier"
)

const UserStatusActive = "active"

var ErrInvalidCredentials = errors.New("invalid credentials")

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

type User struct {
	ID           string
	Email        string
	Role         string
	PasswordHash string
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (User, error) {
	var out User
	var id int64
	err := s.DB.QueryRow(ctx, `
    SELECT id, email, role, password_hash
    FROM users
    WHERE lower(email) = lower($1) AND status = $2
  `, email, UserStatusActive).Scan(&id, &out.Email, &out.Role, &out.PasswordHash)
	if err != nil {
		return User{}, err
	}
	out.ID = strconv.FormatInt(id, 10)
	return out, nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) EnsureUser(ctx context.Context, email, password, role string) error {
	var id int64
	err := s.DB.QueryRow(ctx, "SELECT id FROM users WHERE lower(email) = lower($1)", email).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, "INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3)", email, hash, role)
	return err
}
