package recommendation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retinacare/retinacare/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type recommendationRepoPG struct{ pool *pgxpool.Pool }

func NewRecommendationRepoPG(pool *pgxpool.Pool) RecommendationRepository {
	return &recommendationRepoPG{pool: pool}
}

func (r *recommendationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recommendationCols = `id, diagnosis_id, patient_id, text, created_by, created_at`

func scanRecommendation(row pgx.Row) (*Recommendation, error) {
	var rec Recommendation
	err := row.Scan(&rec.ID, &rec.DiagnosisID, &rec.PatientID, &rec.Text, &rec.CreatedBy, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recommendationRepoPG) Create(ctx context.Context, rec *Recommendation) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO recommendations (id, diagnosis_id, patient_id, text, created_by)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		rec.ID, rec.DiagnosisID, rec.PatientID, rec.Text, rec.CreatedBy).
		Scan(&rec.CreatedAt)
}

func (r *recommendationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Recommendation, error) {
	return scanRecommendation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recommendationCols+` FROM recommendations WHERE id = $1`, id))
}

func (r *recommendationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Recommendation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM recommendations WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recommendationCols+` FROM recommendations
		WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
