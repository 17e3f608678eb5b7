package secondarymail

import "errors"

var (
	// ErrInvalidAddress is returned when an address is empty, too long or
	// not syntactically valid.
	ErrInvalidAddress = errors.New("invalid email address")

	// ErrDuplicateAddress is returned when the address is already the
	// user's primary address or one of their secondary addresses.
	ErrDuplicateAddress = errors.New("email address is already registered for this user")

	// ErrPrimaryNotConfirmed is returned by MakePrimary when the user's
	// current primary address has not been confirmed.
	ErrPrimaryNotConfirmed = errors.New("current primary email address is not confirmed")

	// ErrSecondaryNotConfirmed is returned by MakePrimary when the target
	// secondary address has not been confirmed.
	ErrSecondaryNotConfirmed = errors.New("secondary email address is not confirmed")

	// ErrNoSuchEmail is returned when a mutation targets a record that does
	// not exist or is not owned by the acting user.
	ErrNoSuchEmail = errors.New("no such secondary email address")

	// ErrRateLimited is returned when the actor exceeded the allowed rate
	// for an operation; no storage I/O has happened in that case.
	ErrRateLimited = errors.New("too many requests for this action, please try again later")

	// ErrStorage is returned when a write unexpectedly affected no rows.
	// Callers should treat it as transient infrastructure failure.
	ErrStorage = errors.New("storage did not record the change")

	// ErrPrecondition marks violations that indicate a bug in the caller or
	// a fundamentally broken account state (unattached identity, negative
	// id, malformed token, confirm with authentication disabled). It is
	// never surfaced as a normal user-facing failure.
	ErrPrecondition = errors.New("precondition violation")
)
