package image

import (
	"context"

	"github.com/google/uuid"
)

type ImageRepository interface {
	Create(ctx context.Context, img *RetinalImage) error
	GetByID(ctx context.Context, id uuid.UUID) (*RetinalImage, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*RetinalImage, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
