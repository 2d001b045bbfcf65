package image

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

type imageRepoPG struct{ pool *pgxpool.Pool }

func NewImageRepoPG(pool *pgxpool.Pool) ImageRepository {
	return &imageRepoPG{pool: pool}
}

func (r *imageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const imageCols = `id, patient_id, uploaded_by, original_path, yolo_output_path, uploaded_at`

func scanImage(row pgx.Row) (*RetinalImage, error) {
	var img RetinalImage
	err := row.Scan(&img.ID, &img.PatientID, &img.UploadedBy, &img.OriginalPath,
		&img.YoloOutputPath, &img.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *imageRepoPG) Create(ctx context.Context, img *RetinalImage) error {
	img.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO retinal_images (id, patient_id, uploaded_by, original_path)
		VALUES ($1,$2,$3,$4)
		RETURNING uploaded_at`,
		img.ID, img.PatientID, img.UploadedBy, img.OriginalPath).
		Scan(&img.UploadedAt)
}

func (r *imageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*RetinalImage, error) {
	return scanImage(r.conn(ctx).QueryRow(ctx, `SELECT `+imageCols+` FROM retinal_images WHERE id = $1`, id))
}

func (r *imageRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*RetinalImage, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM retinal_images WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+imageCols+` FROM retinal_images
		WHERE patient_id = $1
		ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*RetinalImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, img)
	}
	return items, total, rows.Err()
}

func (r *imageRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM retinal_images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
