package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/multimail/multimail/pkg/hook"
	"github.com/multimail/multimail/pkg/identity"
	"github.com/multimail/multimail/pkg/notification"
	"github.com/multimail/multimail/pkg/secondarymail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	router *chi.Mux
	mock   *notification.MockNotifier
	store  *identity.InMemIdentityStore
	user   identity.User
	token  string
}

func newAPIEnv(t *testing.T) *apiEnv {
	repo, err := secondarymail.NewFileEmailRepository(t.TempDir())
	require.NoError(t, err)

	mock := &notification.MockNotifier{}
	manager, err := notification.NewManager(
		notification.WithNotifier(notification.EmailSystem, mock),
		notification.WithSecondaryConfirmationTemplate(),
		notification.WithPrimaryChangedTemplate(),
	)
	require.NoError(t, err)

	store := identity.NewInMemIdentityStore()
	service := secondarymail.NewMailService(repo, store, store, manager,
		secondarymail.WithBaseURL("https://accounts.example.com"),
		secondarymail.WithHookRunner(hook.NewRunner()))

	authenticatedAt := time.Now().UTC().Add(-24 * time.Hour)
	user := identity.User{
		ID:                   uuid.New(),
		Username:             "jdoe",
		Name:                 "Jane Doe",
		Email:                "jane@example.com",
		EmailAuthenticatedAt: &authenticatedAt,
	}
	store.AddUser(user, 1)

	tokenAuth := jwtauth.New("HS256", []byte("test-secret"), nil)
	_, token, err := tokenAuth.Encode(map[string]interface{}{"sub": user.ID.String()})
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		Routes(r, NewHandle(service, store))
	})

	return &apiEnv{router: router, mock: mock, store: store, user: user, token: token}
}

func (e *apiEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "BEARER "+e.token)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.7:52814"

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) addEmail(t *testing.T, address string) (int64, string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/emails", fmt.Sprintf(`{"address":%q}`, address))
	require.Equal(t, http.StatusCreated, rec.Code)

	var record EmailRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	require.NotNil(t, record.ID)

	last := e.mock.Last()
	require.NotNil(t, last)
	link := last.Notification.Data["ConfirmationURL"]
	return *record.ID, link[strings.LastIndex(link, "/")+1:]
}

func TestAddEmailEndpoint(t *testing.T) {
	t.Run("creates an unconfirmed record and mails a link", func(t *testing.T) {
		env := newAPIEnv(t)

		rec := env.do(t, http.MethodPost, "/emails", `{"address":"alt@example.com"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var record EmailRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
		assert.Equal(t, "alt@example.com", record.Address)
		assert.False(t, record.Confirmed)
		assert.True(t, record.ConfirmationPending)

		last := env.mock.Last()
		require.NotNil(t, last)
		assert.Equal(t, notification.SecondaryConfirmationNotice, last.NoticeType)
		assert.Equal(t, "alt@example.com", last.Notification.To)
	})

	t.Run("invalid address", func(t *testing.T) {
		env := newAPIEnv(t)

		rec := env.do(t, http.MethodPost, "/emails", `{"address":"not-an-address"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_address")
	})

	t.Run("duplicate address", func(t *testing.T) {
		env := newAPIEnv(t)
		env.addEmail(t, "alt@example.com")

		rec := env.do(t, http.MethodPost, "/emails", `{"address":"alt@example.com"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "duplicate_address")
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		env := newAPIEnv(t)

		req := httptest.NewRequest(http.MethodPost, "/emails", strings.NewReader(`{"address":"alt@example.com"}`))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestConfirmEmailEndpoint(t *testing.T) {
	t.Run("valid token confirms", func(t *testing.T) {
		env := newAPIEnv(t)
		id, token := env.addEmail(t, "alt@example.com")

		rec := env.do(t, http.MethodPost, fmt.Sprintf("/emails/%d/confirm/%s", id, token), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"confirmed":true`)
	})

	t.Run("every failure shares one reason", func(t *testing.T) {
		env := newAPIEnv(t)
		id, _ := env.addEmail(t, "alt@example.com")

		wrongToken := env.do(t, http.MethodPost, fmt.Sprintf("/emails/%d/confirm/%s", id, strings.Repeat("0", 32)), "")
		malformed := env.do(t, http.MethodPost, fmt.Sprintf("/emails/%d/confirm/short", id), "")
		wrongID := env.do(t, http.MethodPost, fmt.Sprintf("/emails/%d/confirm/%s", id+100, strings.Repeat("0", 32)), "")

		for _, rec := range []*httptest.ResponseRecorder{wrongToken, malformed, wrongID} {
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "confirmation_failed")
		}
		assert.Equal(t, wrongToken.Body.String(), malformed.Body.String())
		assert.Equal(t, wrongToken.Body.String(), wrongID.Body.String())
	})
}

func TestResendConfirmationEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	id, firstToken := env.addEmail(t, "alt@example.com")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/emails/%d/confirmation", id), "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	last := env.mock.Last()
	require.NotNil(t, last)
	link := last.Notification.Data["ConfirmationURL"]
	secondToken := link[strings.LastIndex(link, "/")+1:]
	assert.NotEqual(t, firstToken, secondToken)

	// The replaced token no longer works.
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/emails/%d/confirm/%s", id, firstToken), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/emails/%d/confirm/%s", id, secondToken), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/emails/%d/confirmation", id), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMakePrimaryEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	id, token := env.addEmail(t, "new@example.com")

	rec := env.do(t, http.MethodPut, fmt.Sprintf("/emails/%d/primary", id), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "secondary_not_confirmed")

	confirm := env.do(t, http.MethodPost, fmt.Sprintf("/emails/%d/confirm/%s", id, token), "")
	require.Equal(t, http.StatusOK, confirm.Code)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/emails/%d/primary", id), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var record EmailRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.True(t, record.Primary)
	assert.Equal(t, "new@example.com", record.Address)

	stored, err := env.store.GetUser(context.Background(), env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored.Email)
}

func TestDeleteEmailEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	id, _ := env.addEmail(t, "alt@example.com")

	rec := env.do(t, http.MethodDelete, fmt.Sprintf("/emails/%d", id), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/emails/%d", id), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEmailsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.addEmail(t, "alt@example.com")

	rec := env.do(t, http.MethodGet, "/emails", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []EmailRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)

	assert.True(t, records[0].Primary)
	assert.Equal(t, "jane@example.com", records[0].Address)
	assert.True(t, records[0].Confirmed)
	assert.Nil(t, records[0].ID)

	assert.False(t, records[1].Primary)
	assert.Equal(t, "alt@example.com", records[1].Address)
	assert.NotNil(t, records[1].ID)
}
