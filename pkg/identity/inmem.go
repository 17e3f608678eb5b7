package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemIdentityStore is an in-memory Resolver and UserStore. It backs unit
// tests and single-process deployments that bring their own user source.
type InMemIdentityStore struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]User
	centralIDs map[uuid.UUID]int64
}

// NewInMemIdentityStore creates an empty in-memory identity store.
func NewInMemIdentityStore() *InMemIdentityStore {
	return &InMemIdentityStore{
		users:      make(map[uuid.UUID]User),
		centralIDs: make(map[uuid.UUID]int64),
	}
}

// AddUser registers a user. A zero centralID leaves the user unattached.
func (s *InMemIdentityStore) AddUser(user User, centralID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
	if centralID != 0 {
		s.centralIDs[user.ID] = centralID
	}
}

// CentralID implements Resolver.CentralID.
func (s *InMemIdentityStore) CentralID(ctx context.Context, user User) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	centralID, ok := s.centralIDs[user.ID]
	if !ok {
		return 0, ErrUnattached
	}
	return centralID, nil
}

// GetUser implements UserStore.GetUser.
func (s *InMemIdentityStore) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s not found", id)
	}
	return user, nil
}

// UpdatePrimaryEmail implements UserStore.UpdatePrimaryEmail.
func (s *InMemIdentityStore) UpdatePrimaryEmail(ctx context.Context, id uuid.UUID, email string, authenticatedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}

	user.Email = email
	user.EmailAuthenticatedAt = authenticatedAt
	s.users[id] = user
	return nil
}
