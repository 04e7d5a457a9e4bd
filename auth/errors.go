package auth

import "errors"

var (
	ErrNotFound           = errors.New("identity not found")
	ErrUserExists         = errors.New("name already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingFields      = errors.New("name and password are required")
)
