package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/wricardo/tictactoe-arena/auth"
)

const uniqueViolation = "23505"

// UserRepository stores accounts in PostgreSQL
type UserRepository struct {
	pool Pool
}

// NewUserRepository creates a repository over pool
func NewUserRepository(pool Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *auth.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, name, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Name, u.PasswordHash, u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return auth.ErrUserExists
	}
	if err != nil {
		return oops.With("operation", "create user", "name", u.Name).Wrap(err)
	}
	return nil
}

func (r *UserRepository) GetByName(ctx context.Context, name string) (*auth.User, error) {
	return r.get(ctx, `SELECT id, name, password_hash, created_at FROM users WHERE name = $1`, name)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*auth.User, error) {
	return r.get(ctx, `SELECT id, name, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepository) get(ctx context.Context, sql, arg string) (*auth.User, error) {
	var u auth.User
	err := r.pool.QueryRow(ctx, sql, arg).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, oops.With("operation", "get user", "key", arg).Wrap(err)
	}
	return &u, nil
}
