package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/xenking/combo-storefront/internal/domain/admin"
)

var _ admin.Repository = (*AdminStore)(nil)

// AdminStore implements admin.Repository.
type AdminStore struct {
	mu     sync.RWMutex
	admins map[string]admin.Admin
}

// NewAdminStore returns an empty store.
func NewAdminStore() *AdminStore {
	return &AdminStore{admins: make(map[string]admin.Admin)}
}

// FindByUsername returns admin.ErrNotFound when no account matches.
func (s *AdminStore) FindByUsername(_ context.Context, username string) (*admin.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[username]
	if !ok {
		return nil, admin.ErrNotFound
	}
	return &a, nil
}

// Upsert creates the account or updates its password hash and email.
func (s *AdminStore) Upsert(_ context.Context, a *admin.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.admins[a.Username]; ok {
		a.ID = cur.ID
		a.CreatedAt = cur.CreatedAt
	} else if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.admins[a.Username] = *a
	return nil
}
