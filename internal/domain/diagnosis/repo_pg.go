package diagnosis

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

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository {
	return &diagnosisRepoPG{pool: pool}
}

func (r *diagnosisRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const detailQuery = `
	SELECT d.id, d.retinal_image_id, d.severity, d.detections, d.notes, d.created_by, d.created_at,
		p.id, p.name, i.original_path, i.yolo_output_path
	FROM diagnoses d
	JOIN retinal_images i ON i.id = d.retinal_image_id
	JOIN patients p ON p.id = i.patient_id`

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	err := row.Scan(&d.ID, &d.RetinalImageID, &d.Severity, &d.Detections, &d.Notes,
		&d.CreatedBy, &d.CreatedAt,
		&d.PatientID, &d.PatientName, &d.ImagePath, &d.YoloOutputPath)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *diagnosisRepoPG) Create(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnoses (id, retinal_image_id, severity, detections, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		d.ID, d.RetinalImageID, d.Severity, d.Detections, d.Notes, d.CreatedBy).
		Scan(&d.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *diagnosisRepoPG) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return scanDetail(r.conn(ctx).QueryRow(ctx, detailQuery+` WHERE d.id = $1`, id))
}

func (r *diagnosisRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Detail, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM diagnoses d
		JOIN retinal_images i ON i.id = d.retinal_image_id
		WHERE i.patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		detailQuery+` WHERE i.patient_id = $1 ORDER BY d.created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectDetails(rows)
	return items, total, err
}

func (r *diagnosisRepoPG) AllByPatient(ctx context.Context, patientID uuid.UUID) ([]*Detail, error) {
	rows, err := r.conn(ctx).Query(ctx,
		detailQuery+` WHERE i.patient_id = $1 ORDER BY d.created_at ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDetails(rows)
}

func collectDetails(rows pgx.Rows) ([]*Detail, error) {
	var items []*Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *diagnosisRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM diagnoses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *diagnosisRepoPG) CountByImage(ctx context.Context, imageID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM diagnoses WHERE retinal_image_id = $1`, imageID).Scan(&count)
	return count, err
}

func (r *diagnosisRepoPG) CountRecommendations(ctx context.Context, diagnosisID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM recommendations WHERE diagnosis_id = $1`, diagnosisID).Scan(&count)
	return count, err
}

// imageStorePG gives the orchestrator tx-aware access to retinal_images
// without going through the image domain service.
type imageStorePG struct{ pool *pgxpool.Pool }

func NewImageStorePG(pool *pgxpool.Pool) ImageStore {
	return &imageStorePG{pool: pool}
}

func (r *imageStorePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *imageStorePG) Get(ctx context.Context, id uuid.UUID) (*ImageRecord, error) {
	var rec ImageRecord
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, original_path, yolo_output_path
		FROM retinal_images WHERE id = $1`, id).
		Scan(&rec.ID, &rec.PatientID, &rec.OriginalPath, &rec.YoloOutputPath)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *imageStorePG) SetYoloOutput(ctx context.Context, id uuid.UUID, path *string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE retinal_images SET yolo_output_path = $2 WHERE id = $1`, id, path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}
