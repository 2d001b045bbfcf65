package ownership

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// mockLinks holds the chain as maps keyed by child id.
type mockLinks struct {
	patientDoctor  map[uuid.UUID]uuid.UUID
	imagePatient   map[uuid.UUID]uuid.UUID
	diagnosisImage map[uuid.UUID]uuid.UUID
	failWith       error
}

func newMockLinks() *mockLinks {
	return &mockLinks{
		patientDoctor:  make(map[uuid.UUID]uuid.UUID),
		imagePatient:   make(map[uuid.UUID]uuid.UUID),
		diagnosisImage: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *mockLinks) get(links map[uuid.UUID]uuid.UUID, id uuid.UUID) (uuid.UUID, error) {
	if m.failWith != nil {
		return uuid.Nil, m.failWith
	}
	parent, ok := links[id]
	if !ok {
		return uuid.Nil, ErrLinkMissing
	}
	return parent, nil
}

func (m *mockLinks) PatientDoctor(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	return m.get(m.patientDoctor, id)
}

func (m *mockLinks) ImagePatient(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	return m.get(m.imagePatient, id)
}

func (m *mockLinks) DiagnosisImage(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	return m.get(m.diagnosisImage, id)
}

// fullChain wires doctor→patient→image→diagnosis and returns all ids.
func fullChain(m *mockLinks) (doctorID, patientID, imageID, diagnosisID uuid.UUID) {
	doctorID, patientID = uuid.New(), uuid.New()
	imageID, diagnosisID = uuid.New(), uuid.New()
	m.patientDoctor[patientID] = doctorID
	m.imagePatient[imageID] = patientID
	m.diagnosisImage[diagnosisID] = imageID
	return
}

func TestAuthorize_OwnerAllowedAtEveryLevel(t *testing.T) {
	m := newMockLinks()
	doctorID, patientID, imageID, diagnosisID := fullChain(m)
	r := NewResolver(m)

	refs := []Ref{
		{KindPatient, patientID},
		{KindImage, imageID},
		{KindDiagnosis, diagnosisID},
	}
	for _, ref := range refs {
		d, err := r.Authorize(context.Background(), doctorID, ref)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", ref.Kind, err)
		}
		if d != Allowed {
			t.Errorf("%s: expected Allowed, got %s", ref.Kind, d)
		}
	}
}

func TestAuthorize_OtherDoctorDeniedNotNotFound(t *testing.T) {
	m := newMockLinks()
	_, patientID, imageID, diagnosisID := fullChain(m)
	r := NewResolver(m)
	intruder := uuid.New()

	refs := []Ref{
		{KindPatient, patientID},
		{KindImage, imageID},
		{KindDiagnosis, diagnosisID},
	}
	for _, ref := range refs {
		d, err := r.Authorize(context.Background(), intruder, ref)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", ref.Kind, err)
		}
		if d != Denied {
			t.Errorf("%s: expected Denied for unowned resource, got %s", ref.Kind, d)
		}
	}
}

func TestAuthorize_MissingResource(t *testing.T) {
	m := newMockLinks()
	doctorID, _, _, _ := fullChain(m)
	r := NewResolver(m)

	d, err := r.Authorize(context.Background(), doctorID, Ref{KindDiagnosis, uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != NotFound {
		t.Errorf("expected NotFound, got %s", d)
	}
}

func TestAuthorize_BrokenChainMidway(t *testing.T) {
	m := newMockLinks()
	doctorID := uuid.New()
	imageID, diagnosisID := uuid.New(), uuid.New()
	// The image references a patient that no longer exists.
	m.diagnosisImage[diagnosisID] = imageID
	m.imagePatient[imageID] = uuid.New()
	r := NewResolver(m)

	d, err := r.Authorize(context.Background(), doctorID, Ref{KindDiagnosis, diagnosisID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != NotFound {
		t.Errorf("expected NotFound for broken chain, got %s", d)
	}
}

func TestAuthorize_LookupFailurePropagates(t *testing.T) {
	m := newMockLinks()
	m.failWith = errors.New("connection reset")
	r := NewResolver(m)

	_, err := r.Authorize(context.Background(), uuid.New(), Ref{KindPatient, uuid.New()})
	if err == nil {
		t.Error("expected lookup failure to propagate as an error")
	}
}

func TestAuthorize_UnknownKind(t *testing.T) {
	r := NewResolver(newMockLinks())
	if _, err := r.Authorize(context.Background(), uuid.New(), Ref{Kind: "unknown"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}
