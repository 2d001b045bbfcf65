package diagnosis

import (
	"context"

	"github.com/google/uuid"
)

type DiagnosisRepository interface {
	// Create inserts the diagnosis. A second diagnosis for the same image
	// fails with ErrDuplicate via the unique index on retinal_image_id.
	Create(ctx context.Context, d *Diagnosis) error
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Detail, int, error)
	// AllByPatient returns every diagnosis for the patient in creation
	// order, for the most-severe computation.
	AllByPatient(ctx context.Context, patientID uuid.UUID) ([]*Detail, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountByImage(ctx context.Context, imageID uuid.UUID) (int, error)
	// CountRecommendations reports how many recommendations reference the
	// diagnosis, for the delete guard.
	CountRecommendations(ctx context.Context, diagnosisID uuid.UUID) (int, error)
}

// ImageRecord is the slice of a retinal image the orchestrator needs.
type ImageRecord struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	OriginalPath   string
	YoloOutputPath *string
}

// ImageStore reads and mutates retinal images on the orchestrator's behalf.
// SetYoloOutput participates in the surrounding transaction when one is on
// the context.
type ImageStore interface {
	Get(ctx context.Context, id uuid.UUID) (*ImageRecord, error)
	SetYoloOutput(ctx context.Context, id uuid.UUID, path *string) error
}
