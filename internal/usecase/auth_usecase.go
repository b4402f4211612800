package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/ports"
	"github.com/noteflow/noteflow/internal/service/jwt"
	"github.com/noteflow/noteflow/internal/service/password"
)

var (
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrPasswordTooWeak = errors.New("password must be at least 8 characters")
)

// AuthUseCase is kept boundary-level: it exists so that mutations carry a
// real actor identity, not as a full credential-management surface.
type AuthUseCase struct {
	users     ports.UserRepository
	passwords *password.Service
	tokens    *jwt.Service
}

func NewAuthUseCase(users ports.UserRepository, passwords *password.Service, tokens *jwt.Service) *AuthUseCase {
	return &AuthUseCase{users: users, passwords: passwords, tokens: tokens}
}

// Register creates a user with a bcrypt-hashed password.
func (uc *AuthUseCase) Register(ctx context.Context, email, plainPassword string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(plainPassword) < 8 {
		return nil, ErrPasswordTooWeak
	}

	if _, err := uc.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailAlreadyExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := uc.passwords.Hash(plainPassword)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and returns a signed access token.
func (uc *AuthUseCase) Login(ctx context.Context, email, plainPassword string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := uc.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrInvalidCredentials
		}
		return "", err
	}

	ok, err := uc.passwords.Verify(plainPassword, user.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidCredentials
	}

	return uc.tokens.GenerateAccessToken(jwt.Claims{UserID: user.ID, Email: user.Email})
}

// AuditUseCase exposes the audit trail's query side.
type AuditUseCase struct {
	audits ports.AuditRepository
}

func NewAuditUseCase(audits ports.AuditRepository) *AuditUseCase {
	return &AuditUseCase{audits: audits}
}

func (uc *AuditUseCase) EntityHistory(ctx context.Context, entityType, entityID string) ([]*domain.AuditRecord, error) {
	return uc.audits.FindByEntity(ctx, entityType, entityID)
}

func (uc *AuditUseCase) EntityTypeHistory(ctx context.Context, entityType string) ([]*domain.AuditRecord, error) {
	return uc.audits.FindByEntityType(ctx, entityType)
}

func (uc *AuditUseCase) EventHistory(ctx context.Context, eventType domain.EventType) ([]*domain.AuditRecord, error) {
	if !eventType.Valid() {
		return nil, domain.ErrEventMissingType
	}
	return uc.audits.FindByEventType(ctx, eventType)
}

func (uc *AuditUseCase) DateRangeHistory(ctx context.Context, start, end time.Time) ([]*domain.AuditRecord, error) {
	return uc.audits.FindByDateRange(ctx, start, end)
}
