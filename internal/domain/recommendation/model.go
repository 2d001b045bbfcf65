package recommendation

import (
	"time"

	"github.com/google/uuid"
)

// MaxTextLen caps the persisted recommendation text. Truncation is the last
// step before persistence, never applied mid-construction.
const MaxTextLen = 1000

// Recommendation maps to the recommendations table. PatientID is
// denormalized from the diagnosis chain so reads avoid a double join.
type Recommendation struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DiagnosisID uuid.UUID `db:"diagnosis_id" json:"diagnosis_id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Text        string    `db:"text" json:"text"`
	CreatedBy   uuid.UUID `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
