package register_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tripchat/internal/auth"
	"tripchat/internal/http_server/handlers/register"
	"tripchat/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type fakeRegistrar struct {
	seen map[string]bool
}

func (f *fakeRegistrar) RegisterNewUser(_ context.Context, name, email, _ string) (models.User, error) {
	normalized := strings.ToLower(email)
	if f.seen[normalized] {
		return models.User{}, auth.ErrUserExists
	}
	f.seen[normalized] = true

	return models.User{ID: "u1", Name: name, Email: normalized}, nil
}

func newHandler() (http.HandlerFunc, *fakeRegistrar) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registrar := &fakeRegistrar{seen: map[string]bool{}}

	return register.New(log, validator.New(), registrar), registrar
}

func post(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRegister_Success(t *testing.T) {
	t.Parallel()

	handler, _ := newHandler()

	rec := post(handler, `{"name":"A","email":"a@x.com","password":"p"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body register.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "OK", body.Status)
	require.Equal(t, "a@x.com", body.User.Email)
	require.NotContains(t, rec.Body.String(), "passwordHash")
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	t.Parallel()

	handler, _ := newHandler()

	rec := post(handler, `{"name":"A","email":"A@x.com","password":"p"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = post(handler, `{"name":"A","email":"a@x.com","password":"p"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "already exists")
}

func TestRegister_InvalidEmail(t *testing.T) {
	t.Parallel()

	handler, _ := newHandler()

	rec := post(handler, `{"name":"A","email":"not-an-email","password":"p"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_MissingFields(t *testing.T) {
	t.Parallel()

	handler, _ := newHandler()

	rec := post(handler, `{"email":"a@x.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_BadJSON(t *testing.T) {
	t.Parallel()

	handler, _ := newHandler()

	rec := post(handler, `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
