package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Service ties account storage, hashing and token issuing together
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	tokens *TokenIssuer
}

// NewService creates an account service
func NewService(users UserRepository, hasher PasswordHasher, tokens *TokenIssuer) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

// Signup registers a new identity
func (s *Service) Signup(ctx context.Context, name, password string) (*Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil, ErrMissingFields
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Wrapf(err, "hash password")
	}
	u := &User{
		Identity:     Identity{ID: uuid.NewString(), Name: name},
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return &u.Identity, nil
}

// Login checks credentials and issues a token
func (s *Service) Login(ctx context.Context, name, password string) (string, *Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return "", nil, ErrMissingFields
	}

	u, err := s.users.GetByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(u.Identity)
	if err != nil {
		return "", nil, err
	}
	return token, &u.Identity, nil
}

// Authenticate verifies a token and confirms its identity still exists
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.With("subject", id.ID).Wrap(ErrInvalidToken)
	}
	if err != nil {
		return nil, err
	}
	return &u.Identity, nil
}

// LookupByName resolves a display name to its identity
func (s *Service) LookupByName(ctx context.Context, name string) (*Identity, error) {
	u, err := s.users.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	return &u.Identity, nil
}
