package auth

import (
	"context"
	"time"
)

// Identity is the public face of a registered user
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is a stored account. PasswordHash never leaves the package boundary in
// API responses.
type User struct {
	Identity
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserRepository persists accounts. Names are unique.
type UserRepository interface {
	// Create stores a new user, returning ErrUserExists for a taken name
	Create(ctx context.Context, u *User) error

	// GetByName returns ErrNotFound when no user has the name
	GetByName(ctx context.Context, name string) (*User, error)

	// GetByID returns ErrNotFound when no user has the id
	GetByID(ctx context.Context, id string) (*User, error)
}
