package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/retinacare/retinacare/internal/platform/auth"
	"github.com/retinacare/retinacare/internal/platform/inference"
	"github.com/retinacare/retinacare/internal/platform/ownership"
)

var (
	ErrNotFound           = errors.New("diagnosis not found")
	ErrImageNotFound      = errors.New("retinal image not found")
	ErrDenied             = errors.New("diagnosis belongs to another doctor's patient")
	ErrDuplicate          = errors.New("a diagnosis already exists for this image")
	ErrValidation         = errors.New("validation failed")
	ErrNoDiagnoses        = errors.New("patient has no diagnoses")
	ErrHasRecommendations = errors.New("diagnosis still has recommendations")
)

// Authorizer verifies the ownership chain for a resource reference.
type Authorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, ref ownership.Ref) (ownership.Decision, error)
}

// Detector and Classifier are the two inference models. Both are implemented
// by inference.Client.
type Detector interface {
	Detect(ctx context.Context, imagePath string) (*inference.DetectResult, error)
}

type Classifier interface {
	Classify(ctx context.Context, imagePath string) (*inference.ClassifyResult, error)
}

// TxRunner executes fn inside a single database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// FileRemover deletes stored files. Failures are best-effort for callers.
type FileRemover interface {
	Remove(path string) error
}

type Service struct {
	repo       DiagnosisRepository
	images     ImageStore
	detector   Detector
	classifier Classifier
	authz      Authorizer
	tx         TxRunner
	files      FileRemover
	log        zerolog.Logger
}

func NewService(repo DiagnosisRepository, images ImageStore, detector Detector,
	classifier Classifier, authz Authorizer, tx TxRunner, files FileRemover,
	logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		images:     images,
		detector:   detector,
		classifier: classifier,
		authz:      authz,
		tx:         tx,
		files:      files,
		log:        logger,
	}
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

// Create runs the full diagnosis pipeline for an image: validate, authorize,
// run both inference models concurrently, then persist the diagnosis and the
// image's yolo output path in one transaction. Any inference failure aborts
// the whole operation with nothing written.
func (s *Service) Create(ctx context.Context, callerID uuid.UUID, role string,
	imageID uuid.UUID, notes string) (*Detail, error) {

	if utf8.RuneCountInString(notes) > MaxNotesLen {
		return nil, fmt.Errorf("%w: notes exceed %d characters", ErrValidation, MaxNotesLen)
	}

	img, err := s.images.Get(ctx, imageID)
	if err != nil {
		return nil, err
	}

	// Pre-check gives a clean error in the common case; the unique index
	// on retinal_image_id closes the race under concurrent creates.
	count, err := s.repo.CountByImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicate
	}

	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindImage, ID: imageID}); err != nil {
		return nil, err
	}

	var (
		detectRes   *inference.DetectResult
		classifyRes *inference.ClassifyResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detectRes, err = s.detector.Detect(gctx, img.OriginalPath)
		return err
	})
	g.Go(func() error {
		var err error
		classifyRes, err = s.classifier.Classify(gctx, img.OriginalPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	severity := Severity(classifyRes.SeverityLevel)
	if !severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", inference.ErrInvalidResponse, classifyRes.SeverityLevel)
	}

	d := &Diagnosis{
		RetinalImageID: imageID,
		Severity:       severity,
		Detections:     detectRes.Detections,
		Notes:          notes,
		CreatedBy:      callerID,
	}

	// Absent output means null, never a stale value from a prior run.
	var outputPath *string
	if detectRes.OutputImage != "" {
		outputPath = &detectRes.OutputImage
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.images.SetYoloOutput(txCtx, imageID, outputPath); err != nil {
			return err
		}
		return s.repo.Create(txCtx, d)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetDetail(ctx, d.ID)
}

func (s *Service) Get(ctx context.Context, callerID uuid.UUID, role string, id uuid.UUID) (*Detail, error) {
	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindDiagnosis, ID: id}); err != nil {
		return nil, err
	}
	return s.repo.GetDetail(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, callerID uuid.UUID, role string,
	patientID uuid.UUID, limit, offset int) ([]*Detail, int, error) {

	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindPatient, ID: patientID}); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// MostSevereForPatient returns the patient's highest-ranked diagnosis.
// Ties keep the earliest diagnosis.
func (s *Service) MostSevereForPatient(ctx context.Context, callerID uuid.UUID, role string,
	patientID uuid.UUID) (*Detail, error) {

	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindPatient, ID: patientID}); err != nil {
		return nil, err
	}
	items, err := s.repo.AllByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoDiagnoses
	}

	worst := items[0]
	for _, d := range items[1:] {
		if d.Severity.Rank() > worst.Severity.Rank() {
			worst = d
		}
	}
	return worst, nil
}

// Delete removes a diagnosis and clears the parent image's yolo output path
// in one transaction. A diagnosis with recommendations cannot be deleted;
// the recommendations must go first. The output file itself is removed
// best-effort.
func (s *Service) Delete(ctx context.Context, callerID uuid.UUID, role string, id uuid.UUID) error {
	if err := s.check(ctx, callerID, role, ownership.Ref{Kind: ownership.KindDiagnosis, ID: id}); err != nil {
		return err
	}
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.repo.CountRecommendations(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrHasRecommendations
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, id); err != nil {
			return err
		}
		return s.images.SetYoloOutput(txCtx, detail.RetinalImageID, nil)
	})
	if err != nil {
		return err
	}

	if detail.YoloOutputPath != nil {
		if err := s.files.Remove(*detail.YoloOutputPath); err != nil {
			s.log.Warn().Err(err).Str("path", *detail.YoloOutputPath).Msg("failed to remove yolo output file")
		}
	}
	return nil
}
