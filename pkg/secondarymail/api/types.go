package api

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Response is the wrapper every handler returns; Render writes it out.
type Response struct {
	Code        int
	body        interface{}
	contentType string
}

// Render writes the response body with the stored status code.
func (resp *Response) Render(w http.ResponseWriter, r *http.Request) {
	if resp.contentType == "" {
		resp.contentType = "application/json"
	}
	w.Header().Set("Content-Type", resp.contentType)
	render.Status(r, resp.Code)
	render.Respond(w, r, resp.body)
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AddEmailRequest is the body of POST /emails.
type AddEmailRequest struct {
	Address string `json:"address"`
}

// EmailRecord is one address in the list response. The primary address has
// no record id; secondary records carry the id used by the other routes.
type EmailRecord struct {
	ID                  *int64     `json:"id,omitempty"`
	Address             string     `json:"address"`
	Primary             bool       `json:"primary"`
	Confirmed           bool       `json:"confirmed"`
	ConfirmationPending bool       `json:"confirmation_pending"`
	AuthenticatedAt     *time.Time `json:"authenticated_at,omitempty"`
}

// ConfirmEmailResponse is the body of a successful confirmation.
type ConfirmEmailResponse struct {
	Confirmed bool `json:"confirmed"`
}
