// Package hook carries the in-process signals that keep this module and
// the surrounding identity platform's primary email address in sync.
package hook

import (
	"context"

	"github.com/multimail/multimail/pkg/identity"
)

// PrimaryEmailChangingFunc is invoked just before a user's primary email
// address changes. The user value already carries the new address; oldAddress
// is the address being replaced. An empty newAddress means the user is
// clearing their email.
type PrimaryEmailChangingFunc func(ctx context.Context, user identity.User, oldAddress, newAddress string)

// PrimaryEmailConfirmedFunc is invoked after the platform completed
// confirmation of a user's primary email address.
type PrimaryEmailConfirmedFunc func(ctx context.Context, user identity.User)

// Runner dispatches registered handlers for each signal. Registration is
// expected to happen during wiring, before any signal is run.
type Runner struct {
	changing  []PrimaryEmailChangingFunc
	confirmed []PrimaryEmailConfirmedFunc
}

// NewRunner creates an empty hook runner.
func NewRunner() *Runner {
	return &Runner{}
}

// OnPrimaryEmailChanging registers a handler for the changing signal.
func (r *Runner) OnPrimaryEmailChanging(fn PrimaryEmailChangingFunc) {
	r.changing = append(r.changing, fn)
}

// OnPrimaryEmailConfirmed registers a handler for the confirmed signal.
func (r *Runner) OnPrimaryEmailConfirmed(fn PrimaryEmailConfirmedFunc) {
	r.confirmed = append(r.confirmed, fn)
}

// RunPrimaryEmailChanging fires the changing signal.
func (r *Runner) RunPrimaryEmailChanging(ctx context.Context, user identity.User, oldAddress, newAddress string) {
	for _, fn := range r.changing {
		fn(ctx, user, oldAddress, newAddress)
	}
}

// RunPrimaryEmailConfirmed fires the confirmed signal.
func (r *Runner) RunPrimaryEmailConfirmed(ctx context.Context, user identity.User) {
	for _, fn := range r.confirmed {
		fn(ctx, user)
	}
}
