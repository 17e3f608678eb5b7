package secondarymail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/multimail/multimail/pkg/hook"
	"github.com/multimail/multimail/pkg/identity"
	"github.com/multimail/multimail/pkg/notification"
	"github.com/multimail/multimail/pkg/ratelimit"
	"github.com/multimail/multimail/pkg/tokengenerator"
)

// Rate limiter action names, one budget per actor and action.
const (
	actionAddEmail         = "add-email"
	actionConfirm          = "confirm"
	actionSendConfirmation = "send-confirmation"
	actionMakePrimary      = "make-primary"
)

// MaxAddressLength is the longest accepted email address in bytes.
const MaxAddressLength = 255

// RequestContext carries the acting user and request metadata into
// operations that send mail on the user's behalf. User is a pointer:
// MakePrimary updates the primary address fields in place, mirroring what
// the identity platform persists.
type RequestContext struct {
	User *identity.User
	IP   string
}

// MailService owns the secondary email lifecycle: registration,
// confirmation, deletion and promotion to primary. All operations are
// scoped to the acting user's central identity.
type MailService struct {
	repo          EmailRepository
	resolver      identity.Resolver
	users         identity.UserStore
	notifications *notification.Manager
	tokens        *tokengenerator.ConfirmationTokenGenerator
	hooks         *hook.Runner
	limiter       *ratelimit.RateLimiter

	emailAuthentication bool
	tokenExpiry         time.Duration
	baseURL             string
}

// MailServiceOption defines configuration options
type MailServiceOption func(*MailService)

// WithEmailAuthentication toggles the global email-authentication feature.
// When disabled, every address counts as confirmed and no confirmation
// mail is ever sent.
func WithEmailAuthentication(enabled bool) MailServiceOption {
	return func(s *MailService) {
		s.emailAuthentication = enabled
	}
}

// WithTokenExpiry sets the confirmation token lifetime
func WithTokenExpiry(expiry time.Duration) MailServiceOption {
	return func(s *MailService) {
		s.tokenExpiry = expiry
	}
}

// WithBaseURL sets the base URL used in confirmation and undo links
func WithBaseURL(baseURL string) MailServiceOption {
	return func(s *MailService) {
		s.baseURL = baseURL
	}
}

// WithRateLimiter installs a per-actor rate limiter consulted before the
// state-changing operations
func WithRateLimiter(limiter *ratelimit.RateLimiter) MailServiceOption {
	return func(s *MailService) {
		s.limiter = limiter
	}
}

// WithHookRunner installs the hook runner notified about primary email
// changes this service initiates
func WithHookRunner(runner *hook.Runner) MailServiceOption {
	return func(s *MailService) {
		s.hooks = runner
	}
}

// NewMailService creates a new secondary email lifecycle service
func NewMailService(
	repo EmailRepository,
	resolver identity.Resolver,
	users identity.UserStore,
	notifications *notification.Manager,
	opts ...MailServiceOption,
) *MailService {
	service := &MailService{
		repo:          repo,
		resolver:      resolver,
		users:         users,
		notifications: notifications,
		tokens:        tokengenerator.New(),
		hooks:         hook.NewRunner(),

		emailAuthentication: true,
		tokenExpiry:         7 * 24 * time.Hour, // Default 7 days
		baseURL:             "http://localhost:4000",
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// EmailAuthenticationEnabled reports whether proof-of-ownership is required
// before an address is usable.
func (s *MailService) EmailAuthenticationEnabled() bool {
	return s.emailAuthentication
}

// ValidateAddress checks that the address is non-empty, at most
// MaxAddressLength bytes and syntactically valid. It performs no I/O and
// can be used as a pre-submit check by callers.
func (s *MailService) ValidateAddress(address string) error {
	if address == "" || len(address) > MaxAddressLength {
		return ErrInvalidAddress
	}

	// ParseAddress also accepts "Name <addr>" forms; requiring the parsed
	// address to round-trip rejects those along with everything malformed.
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return ErrInvalidAddress
	}

	return nil
}

// AddEmail registers a new secondary email address for the user. The
// record starts unconfirmed and no confirmation mail is sent.
func (s *MailService) AddEmail(ctx context.Context, user identity.User, address string) (*SecondaryEmail, error) {
	if err := s.allow(user, actionAddEmail); err != nil {
		return nil, err
	}
	if err := s.ValidateAddress(address); err != nil {
		return nil, err
	}
	if user.Email == address {
		return nil, ErrDuplicateAddress
	}

	centralID, err := s.centralID(ctx, user)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByAddress(ctx, centralID, address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateAddress
	}

	// The storage-level uniqueness of (central id, address) backstops the
	// lookup above when two adds race.
	row, err := s.repo.Insert(ctx, centralID, address)
	if err != nil {
		return nil, err
	}

	slog.Info("Added secondary email", "user", user.Username, "email_id", row.ID)
	return newSecondaryEmail(user, *row, s.emailAuthentication), nil
}

// AddEmailAndSendConfirmation registers a new secondary address and, when
// email authentication is enabled, immediately sends a confirmation mail.
func (s *MailService) AddEmailAndSendConfirmation(ctx context.Context, rc RequestContext, address string) (*SecondaryEmail, error) {
	email, err := s.AddEmail(ctx, *rc.User, address)
	if err != nil || !s.emailAuthentication {
		return email, err
	}

	if err := s.SendConfirmationMail(ctx, rc, email); err != nil {
		return email, err
	}
	return email, nil
}

// SendConfirmationMail mints a fresh confirmation token for the address,
// persists its hash and expiry, and mails a confirmation link to the
// secondary address. Re-sending replaces any previously issued token.
// It does not check whether email authentication is enabled.
func (s *MailService) SendConfirmationMail(ctx context.Context, rc RequestContext, email *SecondaryEmail) error {
	if err := s.allow(*rc.User, actionSendConfirmation); err != nil {
		return err
	}

	token, expiresAt, hash, err := s.tokens.Generate(s.tokenExpiry)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateToken(ctx, email.ID(), hash, expiresAt); err != nil {
		slog.Error("Failed to store confirmation token", "email_id", email.ID(), "err", err)
		return err
	}
	email.row.TokenHash = &hash
	email.row.TokenExpiresAt = &expiresAt

	data := notification.NotificationData{
		To:     email.Address(),
		ToName: rc.User.Name,
		Data: map[string]string{
			"Username":        rc.User.Username,
			"Address":         email.Address(),
			"IP":              rc.IP,
			"ConfirmationURL": fmt.Sprintf("%s/emails/%d/confirm/%s", s.baseURL, email.ID(), token),
			"ExpiresAt":       expiresAt.Format(time.RFC1123),
		},
	}

	if err := s.notifications.Send(notification.SecondaryConfirmationNotice, data); err != nil {
		slog.Error("Failed to send confirmation mail", "email_id", email.ID(), "err", err)
		return fmt.Errorf("failed to send confirmation mail: %w", err)
	}

	slog.Info("Confirmation mail sent", "user", rc.User.Username, "email_id", email.ID(), "expires_at", expiresAt)
	return nil
}

// Confirm confirms the secondary address with the given token. Wrong id,
// wrong owner, expired token, mismatched token and already-confirmed all
// collapse to false, so probing callers learn nothing about which part of
// their guess was wrong.
func (s *MailService) Confirm(ctx context.Context, user identity.User, id int64, token string) (bool, error) {
	if !s.emailAuthentication {
		return false, fmt.Errorf("%w: confirm called while email authentication is disabled", ErrPrecondition)
	}
	if id < 0 {
		return false, fmt.Errorf("%w: id must not be negative", ErrPrecondition)
	}
	if len(token) != tokengenerator.TokenLength {
		return false, fmt.Errorf("%w: invalid token format", ErrPrecondition)
	}

	if err := s.allow(user, actionConfirm); err != nil {
		return false, err
	}

	centralID, err := s.centralID(ctx, user)
	if err != nil {
		return false, err
	}

	return s.repo.ConfirmWithToken(ctx, centralID, id, tokengenerator.Hash(token), time.Now().UTC())
}

// MakePrimary promotes a confirmed secondary address to the account's
// primary address. The outgoing primary is filed away as a secondary
// record, keeping its confirmation timestamp, and an identical change
// notice is mailed to both the old and the new address. Notification
// failure is reported but never rolls back the completed swap.
func (s *MailService) MakePrimary(ctx context.Context, rc RequestContext, email *SecondaryEmail) error {
	user := rc.User

	if err := s.allow(*user, actionMakePrimary); err != nil {
		return err
	}

	if email.User().ID != user.ID {
		return fmt.Errorf("%w: secondary email does not belong to the acting user", ErrPrecondition)
	}
	if !s.primaryConfirmed(*user) {
		return ErrPrimaryNotConfirmed
	}
	if !email.IsConfirmed() {
		return ErrSecondaryNotConfirmed
	}

	// Checked after the confirmation gates to catch records that are
	// confirmed but no longer hold a valid address.
	if s.ValidateAddress(user.Email) != nil {
		return fmt.Errorf("%w: current primary address is not a valid email address", ErrPrecondition)
	}

	centralID, err := s.centralID(ctx, *user)
	if err != nil {
		return err
	}

	swappedID, err := s.repo.UpsertPrimarySwap(ctx, centralID, user.Email, user.EmailAuthenticatedAt)
	if err != nil {
		return err
	}

	oldAddress := user.Email
	user.Email = email.Address()
	user.EmailAuthenticatedAt = email.AuthenticatedAt()

	slog.Info("Changing primary email address",
		"user", user.Username,
		"old_email", oldAddress,
		"new_email", user.Email,
	)

	// Our own swap must not be reprocessed as an externally initiated change.
	s.hooks.RunPrimaryEmailChanging(hook.WithSelfOriginated(ctx), *user, oldAddress, user.Email)

	if err := s.users.UpdatePrimaryEmail(ctx, user.ID, user.Email, user.EmailAuthenticatedAt); err != nil {
		return err
	}

	// The swap is committed from here on; both notices are attempted
	// regardless of whether the other succeeds.
	data := map[string]string{
		"Username":   user.Username,
		"OldAddress": oldAddress,
		"NewAddress": user.Email,
		"Timestamp":  time.Now().UTC().Format(time.RFC1123),
		"IP":         rc.IP,
		"UndoURL":    fmt.Sprintf("%s/emails/%d/primary", s.baseURL, swappedID),
	}
	oldErr := s.notifications.Send(notification.PrimaryChangedNotice, notification.NotificationData{
		To: oldAddress, ToName: user.Name, Data: data,
	})
	newErr := s.notifications.Send(notification.PrimaryChangedNotice, notification.NotificationData{
		To: user.Email, ToName: user.Name, Data: data,
	})

	if err := errors.Join(oldErr, newErr); err != nil {
		slog.Error("Failed to send primary change notice", "user", user.Username, "err", err)
		return fmt.Errorf("primary email changed, but notice delivery failed: %w", err)
	}

	return nil
}

// Delete removes the secondary email record. Whether the record is
// currently the primary address is the caller's concern: the primary is
// not a real row and can never reach this method.
func (s *MailService) Delete(ctx context.Context, email *SecondaryEmail) error {
	centralID, err := s.centralID(ctx, email.User())
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, centralID, email.ID()); err != nil {
		return err
	}

	slog.Info("Deleted secondary email", "user", email.User().Username, "email_id", email.ID())
	return nil
}

// GetEmailFromID finds a secondary email address by id. It returns
// (nil, nil) when the user owns no such record.
func (s *MailService) GetEmailFromID(ctx context.Context, user identity.User, id int64) (*SecondaryEmail, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: id must not be negative", ErrPrecondition)
	}

	centralID, err := s.centralID(ctx, user)
	if err != nil {
		return nil, err
	}

	row, err := s.repo.FindByID(ctx, centralID, id)
	if err != nil || row == nil {
		return nil, err
	}

	return newSecondaryEmail(user, *row, s.emailAuthentication), nil
}

// GetEmailFromAddress finds a secondary email address by address. It
// returns (nil, nil) when the address is not syntactically valid or the
// user owns no such record.
func (s *MailService) GetEmailFromAddress(ctx context.Context, user identity.User, address string) (*SecondaryEmail, error) {
	if s.ValidateAddress(address) != nil {
		return nil, nil
	}

	centralID, err := s.centralID(ctx, user)
	if err != nil {
		return nil, err
	}

	row, err := s.repo.FindByAddress(ctx, centralID, address)
	if err != nil || row == nil {
		return nil, err
	}

	return newSecondaryEmail(user, *row, s.emailAuthentication), nil
}

// UpdateAuthenticationStatus sets or clears the confirmation timestamp
// without a token check. It exists for the hook bridge, which propagates
// confirmation state for changes that originated in the identity platform,
// and for promotions where ownership was already proven transitively.
func (s *MailService) UpdateAuthenticationStatus(ctx context.Context, email *SecondaryEmail, ts *time.Time) (bool, error) {
	changed, err := s.repo.UpdateAuthenticated(ctx, email.ID(), ts)
	if err != nil {
		return false, err
	}
	if changed {
		email.row.AuthenticatedAt = ts
	}

	return changed, nil
}

// ListEmails returns the user's addresses: the primary address first,
// followed by all secondary records, newest first.
func (s *MailService) ListEmails(ctx context.Context, user identity.User) ([]AccountEmail, error) {
	centralID, err := s.centralID(ctx, user)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.FindByCentralID(ctx, centralID)
	if err != nil {
		return nil, err
	}

	emails := make([]AccountEmail, 0, len(rows)+1)
	emails = append(emails, AccountEmail{
		Primary:         true,
		Address:         user.Email,
		AuthenticatedAt: user.EmailAuthenticatedAt,
	})
	for _, row := range rows {
		record := newSecondaryEmail(user, row, s.emailAuthentication)
		emails = append(emails, AccountEmail{
			Address:         record.Address(),
			AuthenticatedAt: record.AuthenticatedAt(),
			Record:          record,
		})
	}

	return emails, nil
}

// primaryConfirmed mirrors SecondaryEmail.IsConfirmed for the primary
// address held on the identity platform.
func (s *MailService) primaryConfirmed(user identity.User) bool {
	return !s.emailAuthentication || user.EmailAuthenticatedAt != nil
}

func (s *MailService) centralID(ctx context.Context, user identity.User) (int64, error) {
	centralID, err := s.resolver.CentralID(ctx, user)
	if err != nil {
		if errors.Is(err, identity.ErrUnattached) {
			return 0, fmt.Errorf("%w: %w", ErrPrecondition, err)
		}
		return 0, err
	}
	return centralID, nil
}

func (s *MailService) allow(user identity.User, action string) error {
	if s.limiter != nil && !s.limiter.AllowAction(user.ID.String(), action) {
		slog.Warn("Rate limit exceeded", "user", user.Username, "action", action)
		return ErrRateLimited
	}
	return nil
}
