package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/retinacare/retinacare/internal/platform/auth"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrValidation         = errors.New("validation failed")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrHasDependents      = errors.New("user still owns patients or retinal images")
)

const resetTokenTTL = time.Hour

var validRoles = map[string]bool{
	auth.RoleDoctor: true,
	auth.RoleAdmin:  true,
}

type Service struct {
	repo     UserRepository
	tokens   ResetTokenRepository
	secret   []byte
	tokenTTL time.Duration
}

func NewService(repo UserRepository, tokens ResetTokenRepository, secret []byte, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, tokens: tokens, secret: secret, tokenTTL: tokenTTL}
}

// Register creates a user with a bcrypt-hashed password. Role defaults to
// doctor when empty.
func (s *Service) Register(ctx context.Context, name, email, password, role string) (*User, error) {
	if role == "" {
		role = auth.RoleDoctor
	}
	if !validRoles[role] {
		return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, role)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.IssueToken(s.secret, u.ID, u.Role, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// UpdateUser changes name and email. Password changes go through the reset flow.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, name, email string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		u.Name = strings.TrimSpace(name)
	}
	if email != "" {
		u.Email = strings.ToLower(strings.TrimSpace(email))
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes a user unless it still owns patients or uploaded images.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	patients, images, err := s.repo.CountDependents(ctx, id)
	if err != nil {
		return err
	}
	if patients > 0 || images > 0 {
		return ErrHasDependents
	}
	return s.repo.Delete(ctx, id)
}

// ForgotPassword issues a reset token for the given email. The raw token is
// returned for delivery; an unknown email yields ("", nil) so handlers can
// answer identically either way.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	t := &PasswordResetToken{
		UserID:    u.ID,
		TokenHash: hashResetToken(token),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := s.tokens.Replace(ctx, t); err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword consumes a valid token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	t, err := s.tokens.GetByHash(ctx, hashResetToken(token))
	if err != nil {
		return err
	}
	if time.Now().After(t.ExpiresAt) {
		return ErrInvalidResetToken
	}

	u, err := s.repo.GetByID(ctx, t.UserID)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	return s.tokens.Consume(ctx, u.ID)
}

// hashResetToken hashes a reset token for storage and lookup. Tokens are
// high-entropy random values, so an unsalted digest is sufficient and keeps
// them addressable by hash.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
