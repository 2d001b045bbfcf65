package image

import (
	"time"

	"github.com/google/uuid"
)

// RetinalImage maps to the retinal_images table. OriginalPath is the uploaded
// file on disk; YoloOutputPath is set once a diagnosis has produced an
// annotated output and cleared when that diagnosis is deleted.
type RetinalImage struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	UploadedBy     uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	OriginalPath   string    `db:"original_path" json:"original_path"`
	YoloOutputPath *string   `db:"yolo_output_path" json:"yolo_output_path,omitempty"`
	UploadedAt     time.Time `db:"uploaded_at" json:"uploaded_at"`
}
