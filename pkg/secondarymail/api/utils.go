package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/multimail/multimail/pkg/identity"
	"golang.org/x/exp/slog"
)

func unauthorized() *Response {
	return &Response{
		Code: http.StatusUnauthorized,
		body: ErrorResponse{Code: "unauthorized", Message: http.StatusText(http.StatusUnauthorized)},
	}
}

// authenticatedUser resolves the JWT subject to a user record. The token
// carries the local user id in the "sub" claim, with "user_id" accepted as
// a fallback.
func (h Handle) authenticatedUser(r *http.Request) (identity.User, *Response) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		slog.Error("Failed getting JWT claims", "err", err)
		return identity.User{}, unauthorized()
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		subject, _ = claims["user_id"].(string)
	}

	id, err := uuid.Parse(subject)
	if err != nil {
		slog.Error("JWT subject is not a user id", "sub", subject)
		return identity.User{}, unauthorized()
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		slog.Error("Failed to load user for JWT subject", "user_id", id, "err", err)
		return identity.User{}, unauthorized()
	}

	return user, nil
}

// clientIP extracts the originating client address, honoring
// X-Forwarded-For and X-Real-IP set by a fronting proxy.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx != -1 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
