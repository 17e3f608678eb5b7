package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUnattached is returned when a local user has no central identity.
// Such users are not eligible for secondary email management at all, so
// callers are expected to have screened them out already.
var ErrUnattached = errors.New("user is not attached to a central identity")

// User is the local view of an account on the identity platform. The
// Email and EmailAuthenticatedAt fields describe the account's primary
// address; secondary addresses live in the secondarymail store.
type User struct {
	ID                   uuid.UUID
	Username             string
	Name                 string
	Email                string
	EmailAuthenticatedAt *time.Time
}

// Resolver maps a local user to its durable cross-system identity.
type Resolver interface {
	// CentralID returns the central identity of the user, or ErrUnattached
	// if the user has none.
	CentralID(ctx context.Context, user User) (int64, error)
}

// UserStore is the identity platform's persistence boundary for the
// primary email address. It is consumed, never owned, by this module.
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	// UpdatePrimaryEmail persists a new primary address and its
	// authentication timestamp for the user.
	UpdatePrimaryEmail(ctx context.Context, id uuid.UUID, email string, authenticatedAt *time.Time) error
}
