package ownership

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retinacare/retinacare/internal/platform/db"
)

type linksPG struct {
	pool *pgxpool.Pool
}

// NewPGLinkReader returns a LinkReader backed by the patients,
// retinal_images, and diagnoses tables.
func NewPGLinkReader(pool *pgxpool.Pool) LinkReader {
	return &linksPG{pool: pool}
}

func (l *linksPG) lookup(ctx context.Context, query string, id uuid.UUID) (uuid.UUID, error) {
	var row pgx.Row
	if tx := db.TxFromContext(ctx); tx != nil {
		row = tx.QueryRow(ctx, query, id)
	} else {
		row = l.pool.QueryRow(ctx, query, id)
	}

	var out uuid.UUID
	if err := row.Scan(&out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrLinkMissing
		}
		return uuid.Nil, err
	}
	return out, nil
}

func (l *linksPG) PatientDoctor(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	return l.lookup(ctx, `SELECT doctor_id FROM patients WHERE id = $1`, patientID)
}

func (l *linksPG) ImagePatient(ctx context.Context, imageID uuid.UUID) (uuid.UUID, error) {
	return l.lookup(ctx, `SELECT patient_id FROM retinal_images WHERE id = $1`, imageID)
}

func (l *linksPG) DiagnosisImage(ctx context.Context, diagnosisID uuid.UUID) (uuid.UUID, error) {
	return l.lookup(ctx, `SELECT retinal_image_id FROM diagnoses WHERE id = $1`, diagnosisID)
}
