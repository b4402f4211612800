package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/service/jwt"
	"github.com/noteflow/noteflow/internal/service/password"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func newAuthUseCase() (*AuthUseCase, *jwt.Service) {
	tokens := jwt.NewService("test-secret", time.Minute)
	return NewAuthUseCase(newFakeUserRepo(), password.NewService(4), tokens), tokens
}

func TestAuthUseCase_RegisterAndLogin(t *testing.T) {
	uc, tokens := newAuthUseCase()
	ctx := context.Background()

	user, err := uc.Register(ctx, "Alice@Example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	token, err := uc.Login(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	claims, err := tokens.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
}

func TestAuthUseCase_RegisterValidation(t *testing.T) {
	uc, _ := newAuthUseCase()
	ctx := context.Background()

	_, err := uc.Register(ctx, "not-an-email", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = uc.Register(ctx, "bob@example.com", "short")
	assert.ErrorIs(t, err, ErrPasswordTooWeak)
}

func TestAuthUseCase_RegisterDuplicateEmail(t *testing.T) {
	uc, _ := newAuthUseCase()
	ctx := context.Background()

	_, err := uc.Register(ctx, "carol@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = uc.Register(ctx, "carol@example.com", "other-pass-1")
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestAuthUseCase_LoginWrongPassword(t *testing.T) {
	uc, _ := newAuthUseCase()
	ctx := context.Background()

	_, err := uc.Register(ctx, "dave@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = uc.Login(ctx, "dave@example.com", "wrong-pass-1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthUseCase_LoginUnknownUser(t *testing.T) {
	uc, _ := newAuthUseCase()

	_, err := uc.Login(context.Background(), "nobody@example.com", "whatever-1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
