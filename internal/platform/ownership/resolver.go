// Package ownership verifies the doctor→patient→image→diagnosis chain that
// gates every resource access. The resolver is a pure read-and-compare; it
// walks the chain one link at a time and reports a typed decision.
package ownership

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies the resource type at the bottom of the chain.
type Kind string

const (
	KindPatient   Kind = "patient"
	KindImage     Kind = "retinal_image"
	KindDiagnosis Kind = "diagnosis"
)

// Decision is the outcome of an ownership check. NotFound (a broken chain)
// is distinct from Denied (an intact chain owned by someone else) so callers
// can surface 404 vs 403 consistently.
type Decision int

const (
	NotFound Decision = iota
	Denied
	Allowed
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	default:
		return "not found"
	}
}

// Ref names the resource being checked.
type Ref struct {
	Kind Kind
	ID   uuid.UUID
}

// ErrLinkMissing is returned by LinkReader lookups when the referenced row
// does not exist.
var ErrLinkMissing = errors.New("ownership link missing")

// LinkReader resolves one link of the chain at a time.
type LinkReader interface {
	// PatientDoctor returns the owning doctor of a patient.
	PatientDoctor(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error)
	// ImagePatient returns the patient a retinal image belongs to.
	ImagePatient(ctx context.Context, imageID uuid.UUID) (uuid.UUID, error)
	// DiagnosisImage returns the retinal image a diagnosis was made from.
	DiagnosisImage(ctx context.Context, diagnosisID uuid.UUID) (uuid.UUID, error)
}

type Resolver struct {
	links LinkReader
}

func NewResolver(links LinkReader) *Resolver {
	return &Resolver{links: links}
}

// Authorize walks the chain from ref up to the owning doctor and compares
// against userID. A missing link anywhere yields NotFound; an intact chain
// owned by a different doctor yields Denied. Unexpected lookup failures are
// returned as errors, never as a decision.
func (r *Resolver) Authorize(ctx context.Context, userID uuid.UUID, ref Ref) (Decision, error) {
	id := ref.ID

	switch ref.Kind {
	case KindDiagnosis:
		imageID, err := r.links.DiagnosisImage(ctx, id)
		if err != nil {
			return r.decide(err)
		}
		id = imageID
		fallthrough
	case KindImage:
		patientID, err := r.links.ImagePatient(ctx, id)
		if err != nil {
			return r.decide(err)
		}
		id = patientID
		fallthrough
	case KindPatient:
		doctorID, err := r.links.PatientDoctor(ctx, id)
		if err != nil {
			return r.decide(err)
		}
		if doctorID != userID {
			return Denied, nil
		}
		return Allowed, nil
	default:
		return NotFound, fmt.Errorf("unknown resource kind %q", ref.Kind)
	}
}

func (r *Resolver) decide(err error) (Decision, error) {
	if errors.Is(err, ErrLinkMissing) {
		return NotFound, nil
	}
	return NotFound, err
}
