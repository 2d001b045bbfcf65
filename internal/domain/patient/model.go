package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. Every patient has exactly one owning
// doctor for the lifetime of the record.
type Patient struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	DoctorID     uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Name         string     `db:"name" json:"name"`
	Gender       string     `db:"gender" json:"gender"`
	DateOfBirth  time.Time  `db:"date_of_birth" json:"date_of_birth"`
	ContactEmail string     `db:"contact_email" json:"contact_email"`
	ContactPhone *string    `db:"contact_phone" json:"contact_phone,omitempty"`
	Address      *string    `db:"address" json:"address,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true,
}
