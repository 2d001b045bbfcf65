package image

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/retinacare/retinacare/internal/platform/auth"
	"github.com/retinacare/retinacare/internal/platform/ownership"
	"github.com/retinacare/retinacare/internal/platform/storage"
)

var (
	ErrNotFound     = errors.New("retinal image not found")
	ErrDenied       = errors.New("retinal image belongs to another doctor's patient")
	ErrHasDiagnosis = errors.New("retinal image still has a diagnosis")
)

// Authorizer verifies the ownership chain for a resource reference.
type Authorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, ref ownership.Ref) (ownership.Decision, error)
}

// DiagnosisCounter reports how many diagnoses reference an image. Implemented
// by the diagnosis repository and wired in at startup.
type DiagnosisCounter interface {
	CountByImage(ctx context.Context, imageID uuid.UUID) (int, error)
}

type Service struct {
	repo      ImageRepository
	store     storage.Store
	authz     Authorizer
	diagnoses DiagnosisCounter
	log       zerolog.Logger
}

func NewService(repo ImageRepository, store storage.Store, authz Authorizer,
	diagnoses DiagnosisCounter, logger zerolog.Logger) *Service {
	return &Service{repo: repo, store: store, authz: authz, diagnoses: diagnoses, log: logger}
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

// Upload validates and stores an uploaded file, then persists the image
// record. The stored file is removed if the record cannot be persisted.
func (s *Service) Upload(ctx context.Context, callerID uuid.UUID, role string,
	patientID uuid.UUID, originalName, contentType string, content io.Reader) (*RetinalImage, error) {

	if !storage.AllowedContentTypes[contentType] {
		return nil, storage.ErrInvalidContentType
	}
	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindPatient, ID: patientID}); err != nil {
		return nil, err
	}

	path, err := s.store.Save(originalName, content)
	if err != nil {
		return nil, err
	}

	img := &RetinalImage{
		PatientID:    patientID,
		UploadedBy:   callerID,
		OriginalPath: path,
	}
	if err := s.repo.Create(ctx, img); err != nil {
		if rerr := s.store.Remove(path); rerr != nil {
			s.log.Warn().Err(rerr).Str("path", path).Msg("failed to remove orphaned upload")
		}
		return nil, err
	}
	return img, nil
}

func (s *Service) Get(ctx context.Context, callerID uuid.UUID, role string, id uuid.UUID) (*RetinalImage, error) {
	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindImage, ID: id}); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// ListByPatient returns a patient's images, newest first.
func (s *Service) ListByPatient(ctx context.Context, callerID uuid.UUID, role string,
	patientID uuid.UUID, limit, offset int) ([]*RetinalImage, int, error) {

	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindPatient, ID: patientID}); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// Delete removes an image record and its files. An image with a diagnosis
// cannot be deleted; the diagnosis must go first. File removal is
// best-effort: the record is already gone and a leftover file is recoverable
// by an operator, a dangling record is not.
func (s *Service) Delete(ctx context.Context, callerID uuid.UUID, role string, id uuid.UUID) error {
	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindImage, ID: id}); err != nil {
		return err
	}
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.diagnoses.CountByImage(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrHasDiagnosis
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.store.Remove(img.OriginalPath); err != nil {
		s.log.Warn().Err(err).Str("path", img.OriginalPath).Msg("failed to remove original image file")
	}
	if img.YoloOutputPath != nil {
		if err := s.store.Remove(*img.YoloOutputPath); err != nil {
			s.log.Warn().Err(err).Str("path", *img.YoloOutputPath).Msg("failed to remove yolo output file")
		}
	}
	return nil
}
