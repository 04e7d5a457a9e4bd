package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MemoryUserRepository keeps users in memory, optionally mirrored to a JSON
// file so identities survive a restart when no database is configured
type MemoryUserRepository struct {
	mu     sync.RWMutex
	byID   map[string]*User
	byName map[string]string
	path   string
}

// NewMemoryUserRepository creates an in-memory repository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:   make(map[string]*User),
		byName: make(map[string]string),
	}
}

// OpenFileUserRepository loads users from path, creating it on first write
func OpenFileUserRepository(path string) (*MemoryUserRepository, error) {
	r := NewMemoryUserRepository()
	r.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var users []*User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal users: %w", err)
	}
	for _, u := range users {
		r.byID[u.ID] = u
		r.byName[u.Name] = u.ID
	}
	return r, nil
}

// Create stores a new user, failing with ErrUserExists when the name is taken.
// A failed file write rolls the insert back.
func (r *MemoryUserRepository) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[u.Name]; taken {
		return ErrUserExists
	}
	stored := *u
	r.byID[u.ID] = &stored
	r.byName[u.Name] = u.ID

	if err := r.flush(); err != nil {
		delete(r.byID, u.ID)
		delete(r.byName, u.Name)
		return err
	}
	return nil
}

// GetByName returns a copy of the user registered under name
func (r *MemoryUserRepository) GetByName(_ context.Context, name string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	u := *r.byID[id]
	return &u, nil
}

// GetByID returns a copy of the user with the given id
func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

// flush rewrites the users file. Callers hold r.mu.
func (r *MemoryUserRepository) flush() error {
	if r.path == "" {
		return nil
	}

	users := make([]*User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, u)
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create users directory: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	return nil
}
