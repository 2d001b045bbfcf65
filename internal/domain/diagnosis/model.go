package diagnosis

import (
	"time"

	"github.com/google/uuid"

	"github.com/retinacare/retinacare/internal/platform/inference"
)

// Severity is the classifier's verdict for one image.
type Severity string

const (
	SeverityNormal Severity = "normal"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
	SeveritySevere Severity = "severe"
)

var severityRank = map[Severity]int{
	SeverityNormal: 1,
	SeverityLow:    2,
	SeverityMedium: 3,
	SeverityHigh:   4,
	SeveritySevere: 5,
}

// Rank places the severity on the fixed total order
// normal < low < medium < high < severe. Unknown values rank below normal.
func (s Severity) Rank() int { return severityRank[s] }

func (s Severity) Valid() bool { return severityRank[s] > 0 }

// MaxNotesLen caps the free-text notes attached to a diagnosis.
const MaxNotesLen = 500

// Diagnosis maps to the diagnoses table. Detections is stored as JSONB.
// At most one diagnosis exists per retinal image, backed by a unique index.
type Diagnosis struct {
	ID             uuid.UUID             `db:"id" json:"id"`
	RetinalImageID uuid.UUID             `db:"retinal_image_id" json:"retinal_image_id"`
	Severity       Severity              `db:"severity" json:"severity"`
	Detections     []inference.Detection `db:"detections" json:"detections"`
	Notes          string                `db:"notes" json:"notes,omitempty"`
	CreatedBy      uuid.UUID             `db:"created_by" json:"created_by"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
}

// Detail is a diagnosis joined with display fields from its image and
// patient, the shape all read endpoints return.
type Detail struct {
	Diagnosis
	PatientID      uuid.UUID `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	ImagePath      string    `json:"image_path"`
	YoloOutputPath *string   `json:"yolo_output_path,omitempty"`
}
