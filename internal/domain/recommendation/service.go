package recommendation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/retinacare/retinacare/internal/platform/auth"
	"github.com/retinacare/retinacare/internal/platform/inference"
	"github.com/retinacare/retinacare/internal/platform/ownership"
)

var (
	ErrNotFound          = errors.New("recommendation not found")
	ErrDiagnosisNotFound = errors.New("diagnosis not found")
	ErrDenied            = errors.New("recommendation belongs to another doctor's patient")
	ErrDoctorOnly        = errors.New("only doctors can generate recommendations")
)

// DiagnosisRecord is the slice of a diagnosis the generator needs.
type DiagnosisRecord struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	Severity   string
	Detections []inference.Detection
	Notes      string
}

// DiagnosisReader loads diagnoses on the generator's behalf.
type DiagnosisReader interface {
	Get(ctx context.Context, id uuid.UUID) (*DiagnosisRecord, error)
}

// Generator produces treatment text for a prompt. Implemented by llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Authorizer verifies the ownership chain for a resource reference.
type Authorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, ref ownership.Ref) (ownership.Decision, error)
}

type Service struct {
	repo      RecommendationRepository
	diagnoses DiagnosisReader
	generator Generator
	authz     Authorizer
}

func NewService(repo RecommendationRepository, diagnoses DiagnosisReader,
	generator Generator, authz Authorizer) *Service {
	return &Service{repo: repo, diagnoses: diagnoses, generator: generator, authz: authz}
}

func (s *Service) check(ctx context.Context, callerID uuid.UUID, role string, ref ownership.Ref) error {
	if role == auth.RoleAdmin {
		return nil
	}
	decision, err := s.authz.Authorize(ctx, callerID, ref)
	if err != nil {
		return err
	}
	switch decision {
	case ownership.Allowed:
		return nil
	case ownership.Denied:
		return ErrDenied
	default:
		return ErrNotFound
	}
}

// Generate builds a prompt from the diagnosis, calls the text-generation
// service once, and persists the result truncated to MaxTextLen.
// Generation is a clinical action and stays doctor-only; admins read but do
// not generate.
func (s *Service) Generate(ctx context.Context, callerID uuid.UUID, role string,
	diagnosisID uuid.UUID) (*Recommendation, error) {

	if role != auth.RoleDoctor {
		return nil, ErrDoctorOnly
	}

	diag, err := s.diagnoses.Get(ctx, diagnosisID)
	if err != nil {
		return nil, err
	}

	decision, err := s.authz.Authorize(ctx, callerID, ownership.Ref{Kind: ownership.KindDiagnosis, ID: diagnosisID})
	if err != nil {
		return nil, err
	}
	switch decision {
	case ownership.Allowed:
	case ownership.Denied:
		return nil, ErrDenied
	default:
		return nil, ErrDiagnosisNotFound
	}

	text, err := s.generator.Generate(ctx, buildPrompt(diag))
	if err != nil {
		return nil, err
	}
	// The column counts characters; slicing bytes could split a rune.
	if runes := []rune(text); len(runes) > MaxTextLen {
		text = string(runes[:MaxTextLen])
	}

	rec := &Recommendation{
		DiagnosisID: diagnosisID,
		PatientID:   diag.PatientID,
		Text:        text,
		CreatedBy:   callerID,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, callerID uuid.UUID, role string, id uuid.UUID) (*Recommendation, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindPatient, ID: rec.PatientID}); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) ListByPatient(ctx context.Context, callerID uuid.UUID, role string,
	patientID uuid.UUID, limit, offset int) ([]*Recommendation, int, error) {

	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindPatient, ID: patientID}); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// buildPrompt flattens the diagnosis into natural language for the model.
func buildPrompt(d *DiagnosisRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A retinal image was classified with severity %q.\n", d.Severity)

	if len(d.Detections) == 0 {
		b.WriteString("No abnormalities were detected.\n")
	} else {
		b.WriteString("Detected findings:\n")
		for _, det := range d.Detections {
			fmt.Fprintf(&b, "- %s (confidence %.2f) at x=%.0f y=%.0f w=%.0f h=%.0f\n",
				det.Label, det.Confidence,
				det.BoundingBox.X, det.BoundingBox.Y,
				det.BoundingBox.Width, det.BoundingBox.Height)
		}
	}

	if d.Notes != "" {
		fmt.Fprintf(&b, "Doctor's notes: %s\n", d.Notes)
	}
	b.WriteString("Provide a concise treatment recommendation for this patient.")
	return b.String()
}
