package patient

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns patients owned by doctorID, optionally filtered by a
	// case-insensitive name search. A nil doctorID lists all patients.
	List(ctx context.Context, doctorID *uuid.UUID, search string, limit, offset int) ([]*Patient, int, error)
	// CountImages returns how many retinal images reference the patient.
	CountImages(ctx context.Context, patientID uuid.UUID) (int, error)
}
