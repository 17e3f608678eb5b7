// Package bridge subscribes to primary email signals from the identity
// platform and keeps the secondary email store in step with changes this
// module did not initiate.
package bridge

import (
	"context"
	"log/slog"

	"github.com/multimail/multimail/pkg/hook"
	"github.com/multimail/multimail/pkg/identity"
	"github.com/multimail/multimail/pkg/secondarymail"
)

// Bridge reacts to primary email changes and confirmations made directly
// in the identity platform, filing the outgoing primary address away as a
// secondary record and propagating confirmation state onto matching
// secondary records.
type Bridge struct {
	mails *secondarymail.MailService
}

// New creates a bridge on the given mail service.
func New(mails *secondarymail.MailService) *Bridge {
	return &Bridge{mails: mails}
}

// Register attaches the bridge to the runner.
func (b *Bridge) Register(runner *hook.Runner) {
	runner.OnPrimaryEmailChanging(b.primaryEmailChanging)
	runner.OnPrimaryEmailConfirmed(b.primaryEmailConfirmed)
}

// primaryEmailChanging files the outgoing primary address away as a
// secondary record. Swaps performed by MailService.MakePrimary file the
// old primary themselves and carry a self-origin mark, which is consumed
// here so the change is not processed twice.
//
// The platform fires this signal before persisting its own record, so
// user.EmailAuthenticatedAt still belongs to the outgoing address and
// travels with it onto the secondary record.
func (b *Bridge) primaryEmailChanging(ctx context.Context, user identity.User, oldAddress, newAddress string) {
	if newAddress == "" || hook.ConsumeSelfOriginated(ctx) {
		return
	}
	if b.mails.ValidateAddress(oldAddress) != nil {
		return
	}

	email, err := b.mails.GetEmailFromAddress(ctx, user, oldAddress)
	if err != nil {
		slog.Error("Failed to look up outgoing primary email", "user", user.Username, "err", err)
		return
	}

	if email == nil {
		email, err = b.mails.AddEmail(ctx, user, oldAddress)
		if err != nil {
			slog.Error("Failed to file away outgoing primary email", "user", user.Username, "err", err)
			return
		}
	}

	if _, err := b.mails.UpdateAuthenticationStatus(ctx, email, user.EmailAuthenticatedAt); err != nil {
		slog.Error("Failed to carry confirmation state onto secondary email", "user", user.Username, "err", err)
	}
}

// primaryEmailConfirmed propagates a completed primary email confirmation
// onto the secondary record holding the same address, if one exists.
func (b *Bridge) primaryEmailConfirmed(ctx context.Context, user identity.User) {
	email, err := b.mails.GetEmailFromAddress(ctx, user, user.Email)
	if err != nil {
		slog.Error("Failed to look up confirmed primary email", "user", user.Username, "err", err)
		return
	}
	if email == nil {
		return
	}

	if _, err := b.mails.UpdateAuthenticationStatus(ctx, email, user.EmailAuthenticatedAt); err != nil {
		slog.Error("Failed to propagate primary confirmation", "user", user.Username, "err", err)
	}
}
