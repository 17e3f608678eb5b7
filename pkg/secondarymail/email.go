package secondarymail

import (
	"time"

	"github.com/multimail/multimail/pkg/identity"
)

// EmailRow is one row of the user_secondary_email table, free of any
// database-specific types. Repositories produce it; the service wraps it
// into a SecondaryEmail before handing it to callers.
type EmailRow struct {
	ID              int64
	CentralID       int64
	Address         string
	AuthenticatedAt *time.Time
	TokenHash       *string
	TokenExpiresAt  *time.Time
}

// SecondaryEmail is one secondary address owned by a user. Its fields are
// read-only; all state transitions go through the MailService so the
// stored row and the in-memory view stay consistent.
type SecondaryEmail struct {
	row                 EmailRow
	user                identity.User
	emailAuthentication bool
}

func newSecondaryEmail(user identity.User, row EmailRow, emailAuthentication bool) *SecondaryEmail {
	return &SecondaryEmail{row: row, user: user, emailAuthentication: emailAuthentication}
}

// ID returns the id of the row in the secondary email table.
func (e *SecondaryEmail) ID() int64 {
	return e.row.ID
}

// User returns the user this address belongs to.
func (e *SecondaryEmail) User() identity.User {
	return e.user
}

// Address returns the email address.
func (e *SecondaryEmail) Address() string {
	return e.row.Address
}

// AuthenticatedAt returns the confirmation timestamp, or nil when the
// address has not been proven owned.
func (e *SecondaryEmail) AuthenticatedAt() *time.Time {
	return e.row.AuthenticatedAt
}

// IsConfirmed reports whether the address is usable. When email
// authentication is globally disabled every address counts as confirmed.
func (e *SecondaryEmail) IsConfirmed() bool {
	return !e.emailAuthentication || e.row.AuthenticatedAt != nil
}

// IsConfirmationPending reports whether an unexpired confirmation request
// is outstanding for this address.
func (e *SecondaryEmail) IsConfirmationPending() bool {
	return !e.IsConfirmed() &&
		e.row.TokenHash != nil &&
		e.row.TokenExpiresAt != nil &&
		e.row.TokenExpiresAt.After(time.Now().UTC())
}

// AccountEmail is one entry of a user's address list: either the primary
// address derived from the identity platform, or a secondary record. It
// replaces the notion of a "virtual" secondary row for the primary address.
type AccountEmail struct {
	Primary         bool
	Address         string
	AuthenticatedAt *time.Time
	// Record is the backing secondary record; nil for the primary address.
	Record *SecondaryEmail
}
