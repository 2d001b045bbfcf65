package recommendation

import (
	"context"

	"github.com/google/uuid"
)

type RecommendationRepository interface {
	Create(ctx context.Context, r *Recommendation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Recommendation, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Recommendation, int, error)
}
