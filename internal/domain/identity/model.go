package identity

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the users table. A doctor owns patients and uploads retinal
// images; an admin passes every ownership check.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PasswordResetToken maps to the password_reset_tokens table. The raw token
// is returned to the caller once; only its hash is stored. A token is usable
// until it expires or is consumed, and issuing a new one invalidates any
// previous token for the same user.
type PasswordResetToken struct {
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
