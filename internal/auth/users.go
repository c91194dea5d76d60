package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Users is the identity lookup owned by the account service.
type Users interface {
	Lookup(ctx context.Context, id string) (User, error)
}

func userNotFound(id string) error {
	return fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
}

type MemoryUsers struct {
	mu   sync.RWMutex
	data map[string]User
}

func NewMemoryUsers(seed ...User) *MemoryUsers {
	m := &MemoryUsers{data: make(map[string]User, len(seed))}
	for _, u := range seed {
		m.Put(u)
	}
	return m
}

func (m *MemoryUsers) Put(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[u.ID] = u
}

func (m *MemoryUsers) Lookup(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.data[id]
	if !ok {
		return User{}, userNotFound(id)
	}
	return u, nil
}

type PostgresUsers struct{ DB *pgxpool.Pool }

func (p *PostgresUsers) Lookup(ctx context.Context, id string) (User, error) {
	var (
		u    User
		role string
	)
	err := p.DB.QueryRow(ctx, `SELECT id, name, email, role FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, userNotFound(id)
	}
	if err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}
