package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/retinacare/retinacare/internal/platform/auth"
	"github.com/retinacare/retinacare/internal/platform/ownership"
)

var (
	ErrNotFound   = errors.New("patient not found")
	ErrDenied     = errors.New("patient belongs to another doctor")
	ErrEmailTaken = errors.New("contact email already in use")
	ErrHasImages  = errors.New("patient still has retinal images")
	ErrValidation = errors.New("validation failed")
)

// Authorizer verifies the ownership chain for a resource reference.
type Authorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, ref ownership.Ref) (ownership.Decision, error)
}

type Service struct {
	repo  PatientRepository
	authz Authorizer
}

func NewService(repo PatientRepository, authz Authorizer) *Service {
	return &Service{repo: repo, authz: authz}
}

func validate(p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !validGenders[p.Gender] {
		return fmt.Errorf("%w: gender must be male, female, or other", ErrValidation)
	}
	if p.DateOfBirth.IsZero() {
		return fmt.Errorf("%w: date_of_birth is required", ErrValidation)
	}
	if strings.TrimSpace(p.ContactEmail) == "" {
		return fmt.Errorf("%w: contact email is required", ErrValidation)
	}
	return nil
}

// check resolves the ownership chain for the caller. Admins bypass the check.
func (s *Service) check(ctx context.Context, callerID uuid.UUID, role string, patientID uuid.UUID) error {
	if role == auth.RoleAdmin {
		return nil
	}
	decision, err := s.authz.Authorize(ctx, callerID, ownership.Ref{Kind: ownership.KindPatient, ID: patientID})
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

// Create registers a patient under the calling doctor. Admins may create a
// patient for any doctor by setting DoctorID explicitly.
func (s *Service) Create(ctx context.Context, callerID uuid.UUID, role string, p *Patient) error {
	if role != auth.RoleAdmin || p.DoctorID == uuid.Nil {
		p.DoctorID = callerID
	}
	p.ContactEmail = strings.ToLower(strings.TrimSpace(p.ContactEmail))
	if err := validate(p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, callerID uuid.UUID, role string, id uuid.UUID) (*Patient, error) {
	if err := s.check(ctx, callerID, role, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// List returns the caller's patients. Admins see every doctor's patients.
func (s *Service) List(ctx context.Context, callerID uuid.UUID, role string, search string, limit, offset int) ([]*Patient, int, error) {
	var doctorID *uuid.UUID
	if role != auth.RoleAdmin {
		doctorID = &callerID
	}
	return s.repo.List(ctx, doctorID, search, limit, offset)
}

// Update applies changes to a patient the caller owns. DoctorID is immutable.
func (s *Service) Update(ctx context.Context, callerID uuid.UUID, role string, p *Patient) (*Patient, error) {
	if err := s.check(ctx, callerID, role, p.ID); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	if p.Name != "" {
		existing.Name = p.Name
	}
	if p.Gender != "" {
		existing.Gender = p.Gender
	}
	if !p.DateOfBirth.IsZero() {
		existing.DateOfBirth = p.DateOfBirth
	}
	if p.ContactEmail != "" {
		existing.ContactEmail = strings.ToLower(strings.TrimSpace(p.ContactEmail))
	}
	if p.ContactPhone != nil {
		existing.ContactPhone = p.ContactPhone
	}
	if p.Address != nil {
		existing.Address = p.Address
	}

	if err := validate(existing); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete removes a patient the caller owns, unless images still reference it.
func (s *Service) Delete(ctx context.Context, callerID uuid.UUID, role string, id uuid.UUID) error {
	if err := s.check(ctx, callerID, role, id); err != nil {
		return err
	}
	count, err := s.repo.CountImages(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrHasImages
	}
	return s.repo.Delete(ctx, id)
}
