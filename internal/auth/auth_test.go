package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"tripchat/internal/lib/jwt"
	"tripchat/internal/models"
	"tripchat/internal/storage"

	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	byEmail map[string]models.User
	byID    map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: map[string]models.User{},
		byID:    map[string]models.User{},
	}
}

func (s *fakeUserStore) SaveUser(_ context.Context, id, name, email string, passHash []byte) (string, error) {
	if _, ok := s.byEmail[email]; ok {
		return "", storage.ErrUserExists
	}

	u := models.User{ID: id, Name: name, Email: email, PassHash: passHash}
	s.byEmail[email] = u
	s.byID[id] = u

	return id, nil
}

func (s *fakeUserStore) User(_ context.Context, email string) (models.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeUserStore) UserByID(_ context.Context, id string) (models.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return u, nil
}

func newTestAuth(store *fakeUserStore) (*Auth, *jwt.Manager) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := jwt.NewManager("test-secret", time.Hour)

	return New(log, store, store, tokens), tokens
}

func TestRegisterNewUser_DuplicateEmailNormalized(t *testing.T) {
	t.Parallel()

	a, _ := newTestAuth(newFakeUserStore())
	ctx := context.Background()

	_, err := a.RegisterNewUser(ctx, "A", "A@x.com", "p")
	require.NoError(t, err)

	_, err = a.RegisterNewUser(ctx, "A", "a@x.com", "p")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUserExists))
}

func TestRegisterNewUser_StoresLowercaseEmailAndHash(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	a, _ := newTestAuth(store)

	user, err := a.RegisterNewUser(context.Background(), "Alice", "Alice@Example.COM", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEmpty(t, user.ID)

	saved := store.byEmail["alice@example.com"]
	require.NotEmpty(t, saved.PassHash)
	require.NotEqual(t, "hunter22", string(saved.PassHash))
}

func TestLogin_SuccessIssuesVerifiableToken(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	a, tokens := newTestAuth(store)
	ctx := context.Background()

	user, err := a.RegisterNewUser(ctx, "A", "a@x.com", "p")
	require.NoError(t, err)

	// Mixed case at login must still match the stored lowercase email.
	token, err := a.Login(ctx, "A@X.COM", "p")
	require.NoError(t, err)

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, "a@x.com", claims.Email)
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()

	a, _ := newTestAuth(newFakeUserStore())
	ctx := context.Background()

	_, err := a.RegisterNewUser(ctx, "A", "a@x.com", "p")
	require.NoError(t, err)

	_, err = a.Login(ctx, "a@x.com", "wrong")
	require.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestLogin_UnknownUser(t *testing.T) {
	t.Parallel()

	a, _ := newTestAuth(newFakeUserStore())

	_, err := a.Login(context.Background(), "nobody@x.com", "p")
	require.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestUserInfo_NotFound(t *testing.T) {
	t.Parallel()

	a, _ := newTestAuth(newFakeUserStore())

	_, err := a.UserInfo(context.Background(), "missing-id")
	require.True(t, errors.Is(err, storage.ErrUserNotFound))
}
