package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jinzhu/copier"
	"github.com/multimail/multimail/pkg/identity"
	"github.com/multimail/multimail/pkg/secondarymail"
	"golang.org/x/exp/slog"
)

type Handle struct {
	mails *secondarymail.MailService
	users identity.UserStore
}

func NewHandle(mails *secondarymail.MailService, users identity.UserStore) Handle {
	return Handle{
		mails: mails,
		users: users,
	}
}

// Routes mounts the email management endpoints. Callers are expected to
// wrap the router with JWT verification middleware.
func Routes(r chi.Router, h Handle) {
	r.Get("/emails", wrap(h.ListEmails))
	r.Post("/emails", wrap(h.AddEmail))
	r.Delete("/emails/{id}", wrap(h.DeleteEmail))
	r.Post("/emails/{id}/confirm/{token}", wrap(h.ConfirmEmail))
	r.Post("/emails/{id}/confirmation", wrap(h.ResendConfirmation))
	r.Put("/emails/{id}/primary", wrap(h.MakePrimary))
}

func wrap(fn func(w http.ResponseWriter, r *http.Request) *Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp := fn(w, r); resp != nil {
			resp.Render(w, r)
		}
	}
}

// List all email addresses of the authenticated user
// (GET /emails)
func (h Handle) ListEmails(w http.ResponseWriter, r *http.Request) *Response {
	user, errResp := h.authenticatedUser(r)
	if errResp != nil {
		return errResp
	}

	emails, err := h.mails.ListEmails(r.Context(), user)
	if err != nil {
		return errorResponse(err)
	}

	records := make([]EmailRecord, 0, len(emails))
	for _, email := range emails {
		var record EmailRecord
		copier.Copy(&record, &email)
		if email.Record != nil {
			id := email.Record.ID()
			record.ID = &id
			record.Confirmed = email.Record.IsConfirmed()
			record.ConfirmationPending = email.Record.IsConfirmationPending()
		} else {
			record.Confirmed = email.AuthenticatedAt != nil || !h.mails.EmailAuthenticationEnabled()
		}
		records = append(records, record)
	}

	return &Response{Code: http.StatusOK, body: records}
}

// Register a new secondary email address and mail a confirmation link
// (POST /emails)
func (h Handle) AddEmail(w http.ResponseWriter, r *http.Request) *Response {
	user, errResp := h.authenticatedUser(r)
	if errResp != nil {
		return errResp
	}

	var data AddEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		slog.Error("Failed to decode request body", "err", err)
		return &Response{
			Code: http.StatusBadRequest,
			body: ErrorResponse{Code: "invalid_request", Message: "Invalid request body"},
		}
	}

	rc := secondarymail.RequestContext{User: &user, IP: clientIP(r)}
	email, err := h.mails.AddEmailAndSendConfirmation(r.Context(), rc, data.Address)
	if err != nil && email == nil {
		return errorResponse(err)
	}
	if err != nil {
		// Registered but the confirmation mail did not go out; the record
		// exists and the confirmation can be re-requested.
		slog.Error("Secondary email added without confirmation mail", "email_id", email.ID(), "err", err)
	}

	id := email.ID()
	return &Response{
		Code: http.StatusCreated,
		body: EmailRecord{
			ID:                  &id,
			Address:             email.Address(),
			Confirmed:           email.IsConfirmed(),
			ConfirmationPending: email.IsConfirmationPending(),
		},
	}
}

// Delete a secondary email address
// (DELETE /emails/{id})
func (h Handle) DeleteEmail(w http.ResponseWriter, r *http.Request) *Response {
	user, errResp := h.authenticatedUser(r)
	if errResp != nil {
		return errResp
	}

	email, errResp := h.ownedEmail(r, user)
	if errResp != nil {
		return errResp
	}

	if err := h.mails.Delete(r.Context(), email); err != nil {
		return errorResponse(err)
	}

	return &Response{Code: http.StatusNoContent}
}

// Confirm a secondary email address with a mailed token. Every failure
// maps to the same reason so callers cannot probe which part of their
// guess was wrong.
// (POST /emails/{id}/confirm/{token})
func (h Handle) ConfirmEmail(w http.ResponseWriter, r *http.Request) *Response {
	user, errResp := h.authenticatedUser(r)
	if errResp != nil {
		return errResp
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		return confirmationFailed()
	}

	ok, err := h.mails.Confirm(r.Context(), user, id, chi.URLParam(r, "token"))
	if err != nil {
		if errors.Is(err, secondarymail.ErrRateLimited) {
			return errorResponse(err)
		}
		if errors.Is(err, secondarymail.ErrPrecondition) {
			return confirmationFailed()
		}
		return errorResponse(err)
	}
	if !ok {
		return confirmationFailed()
	}

	return &Response{Code: http.StatusOK, body: ConfirmEmailResponse{Confirmed: true}}
}

// Re-send the confirmation mail for an unconfirmed secondary address
// (POST /emails/{id}/confirmation)
func (h Handle) ResendConfirmation(w http.ResponseWriter, r *http.Request) *Response {
	user, errResp := h.authenticatedUser(r)
	if errResp != nil {
		return errResp
	}

	if !h.mails.EmailAuthenticationEnabled() {
		return &Response{
			Code: http.StatusBadRequest,
			body: ErrorResponse{Code: "confirmation_disabled", Message: "Email authentication is disabled"},
		}
	}

	email, errResp := h.ownedEmail(r, user)
	if errResp != nil {
		return errResp
	}
	if email.IsConfirmed() {
		return &Response{
			Code: http.StatusConflict,
			body: ErrorResponse{Code: "already_confirmed", Message: "Address is already confirmed"},
		}
	}

	rc := secondarymail.RequestContext{User: &user, IP: clientIP(r)}
	if err := h.mails.SendConfirmationMail(r.Context(), rc, email); err != nil {
		return errorResponse(err)
	}

	return &Response{Code: http.StatusAccepted, body: map[string]string{"status": "confirmation_sent"}}
}

// Promote a confirmed secondary address to primary
// (PUT /emails/{id}/primary)
func (h Handle) MakePrimary(w http.ResponseWriter, r *http.Request) *Response {
	user, errResp := h.authenticatedUser(r)
	if errResp != nil {
		return errResp
	}

	email, errResp := h.ownedEmail(r, user)
	if errResp != nil {
		return errResp
	}

	rc := secondarymail.RequestContext{User: &user, IP: clientIP(r)}
	if err := h.mails.MakePrimary(r.Context(), rc, email); err != nil {
		return errorResponse(err)
	}

	return &Response{
		Code: http.StatusOK,
		body: EmailRecord{
			Address:         user.Email,
			Primary:         true,
			Confirmed:       user.EmailAuthenticatedAt != nil || !h.mails.EmailAuthenticationEnabled(),
			AuthenticatedAt: user.EmailAuthenticatedAt,
		},
	}
}

// ownedEmail loads the record addressed by the {id} route parameter for
// the given user.
func (h Handle) ownedEmail(r *http.Request, user identity.User) (*secondarymail.SecondaryEmail, *Response) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		return nil, notFound()
	}

	email, err := h.mails.GetEmailFromID(r.Context(), user, id)
	if err != nil {
		return nil, errorResponse(err)
	}
	if email == nil {
		return nil, notFound()
	}

	return email, nil
}

func notFound() *Response {
	return &Response{
		Code: http.StatusNotFound,
		body: ErrorResponse{Code: "not_found", Message: "No such email address"},
	}
}

func confirmationFailed() *Response {
	return &Response{
		Code: http.StatusBadRequest,
		body: ErrorResponse{Code: "confirmation_failed", Message: "Confirmation failed"},
	}
}

func errorResponse(err error) *Response {
	switch {
	case errors.Is(err, secondarymail.ErrInvalidAddress):
		return &Response{
			Code: http.StatusBadRequest,
			body: ErrorResponse{Code: "invalid_address", Message: "Not a valid email address"},
		}
	case errors.Is(err, secondarymail.ErrDuplicateAddress):
		return &Response{
			Code: http.StatusConflict,
			body: ErrorResponse{Code: "duplicate_address", Message: "Address is already registered"},
		}
	case errors.Is(err, secondarymail.ErrPrimaryNotConfirmed):
		return &Response{
			Code: http.StatusBadRequest,
			body: ErrorResponse{Code: "primary_not_confirmed", Message: "Current primary address is not confirmed"},
		}
	case errors.Is(err, secondarymail.ErrSecondaryNotConfirmed):
		return &Response{
			Code: http.StatusBadRequest,
			body: ErrorResponse{Code: "secondary_not_confirmed", Message: "Address is not confirmed"},
		}
	case errors.Is(err, secondarymail.ErrNoSuchEmail):
		return notFound()
	case errors.Is(err, secondarymail.ErrRateLimited):
		return &Response{
			Code: http.StatusTooManyRequests,
			body: ErrorResponse{Code: "rate_limited", Message: "Too many requests, try again later"},
		}
	default:
		slog.Error("Request failed", "err", err)
		return &Response{
			Code: http.StatusInternalServerError,
			body: ErrorResponse{Code: "internal_error", Message: http.StatusText(http.StatusInternalServerError)},
		}
	}
}
