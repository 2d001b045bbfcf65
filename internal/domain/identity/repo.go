package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	// CountDependents returns how many patients the user owns and how many
	// retinal images the user uploaded. Both must be zero before deletion.
	CountDependents(ctx context.Context, userID uuid.UUID) (patients, images int, err error)
}

type ResetTokenRepository interface {
	// Replace removes any existing tokens for the user and stores t.
	Replace(ctx context.Context, t *PasswordResetToken) error
	GetByHash(ctx context.Context, tokenHash string) (*PasswordResetToken, error)
	// Consume deletes all tokens for the user after a successful reset.
	Consume(ctx context.Context, userID uuid.UUID) error
}
