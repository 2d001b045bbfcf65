package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/retinacare/retinacare/internal/platform/auth"
)

// -- Mock repositories --

type mockUserRepo struct {
	users    map[uuid.UUID]*User
	patients map[uuid.UUID]int
	images   map[uuid.UUID]int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:    make(map[uuid.UUID]*User),
		patients: make(map[uuid.UUID]int),
		images:   make(map[uuid.UUID]int),
	}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = time.Now()
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	var result []*User
	for _, u := range m.users {
		result = append(result, u)
	}
	total := len(result)
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockUserRepo) CountDependents(_ context.Context, userID uuid.UUID) (int, int, error) {
	return m.patients[userID], m.images[userID], nil
}

type mockTokenRepo struct {
	tokens map[string]*PasswordResetToken // keyed by hash
}

func newMockTokenRepo() *mockTokenRepo {
	return &mockTokenRepo{tokens: make(map[string]*PasswordResetToken)}
}

func (m *mockTokenRepo) Replace(_ context.Context, t *PasswordResetToken) error {
	for hash, existing := range m.tokens {
		if existing.UserID == t.UserID {
			delete(m.tokens, hash)
		}
	}
	m.tokens[t.TokenHash] = t
	return nil
}

func (m *mockTokenRepo) GetByHash(_ context.Context, hash string) (*PasswordResetToken, error) {
	t, ok := m.tokens[hash]
	if !ok {
		return nil, ErrInvalidResetToken
	}
	return t, nil
}

func (m *mockTokenRepo) Consume(_ context.Context, userID uuid.UUID) error {
	for hash, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, hash)
		}
	}
	return nil
}

func newTestService() (*Service, *mockUserRepo, *mockTokenRepo) {
	users := newMockUserRepo()
	tokens := newMockTokenRepo()
	return NewService(users, tokens, []byte("test-secret"), time.Hour), users, tokens
}

// -- Tests --

func TestRegister_HashesPassword(t *testing.T) {
	svc, _, _ := newTestService()

	u, err := svc.Register(context.Background(), "Dr. Chen", "chen@clinic.test", "s3cretpass", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != auth.RoleDoctor {
		t.Errorf("expected default role doctor, got %s", u.Role)
	}
	if u.PasswordHash == "s3cretpass" || u.PasswordHash == "" {
		t.Error("password not hashed")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "A", "dup@clinic.test", "password1", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, "B", "dup@clinic.test", "password2", ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "A", "a@b.test", "short", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for short password, got %v", err)
	}
	if _, err := svc.Register(ctx, "A", "a@b.test", "password1", "superuser"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for bad role, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u, _ := svc.Register(ctx, "Dr. Chen", "chen@clinic.test", "s3cretpass", "")

	token, got, err := svc.Login(ctx, "chen@clinic.test", "s3cretpass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Error("expected a token")
	}
	if got.ID != u.ID {
		t.Error("wrong user returned")
	}

	claims, err := auth.ParseToken([]byte("test-secret"), token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.Role != auth.RoleDoctor {
		t.Errorf("expected doctor role claim, got %s", claims.Role)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Register(ctx, "Dr. Chen", "chen@clinic.test", "s3cretpass", "")

	if _, _, err := svc.Login(ctx, "chen@clinic.test", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@clinic.test", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestDeleteUser_DependencyGuard(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()
	u, _ := svc.Register(ctx, "Dr. Chen", "chen@clinic.test", "s3cretpass", "")

	users.patients[u.ID] = 2
	if err := svc.DeleteUser(ctx, u.ID); !errors.Is(err, ErrHasDependents) {
		t.Errorf("expected ErrHasDependents, got %v", err)
	}

	users.patients[u.ID] = 0
	if err := svc.DeleteUser(ctx, u.ID); err != nil {
		t.Errorf("expected delete to succeed, got %v", err)
	}
}

func TestPasswordReset_Flow(t *testing.T) {
	svc, _, tokens := newTestService()
	ctx := context.Background()
	svc.Register(ctx, "Dr. Chen", "chen@clinic.test", "s3cretpass", "")

	token, err := svc.ForgotPassword(ctx, "chen@clinic.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a raw token")
	}
	if _, ok := tokens.tokens[token]; ok {
		t.Error("raw token stored unhashed")
	}

	if err := svc.ResetPassword(ctx, token, "newpassword"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := svc.Login(ctx, "chen@clinic.test", "newpassword"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
	if _, _, err := svc.Login(ctx, "chen@clinic.test", "s3cretpass"); err == nil {
		t.Error("old password still works")
	}

	// Token is consumed.
	if err := svc.ResetPassword(ctx, token, "anotherpass"); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("expected consumed token to fail, got %v", err)
	}
}

func TestPasswordReset_UnknownEmail(t *testing.T) {
	svc, _, _ := newTestService()

	token, err := svc.ForgotPassword(context.Background(), "ghost@clinic.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "" {
		t.Error("expected no token for unknown email")
	}
}

func TestPasswordReset_Expired(t *testing.T) {
	svc, _, tokens := newTestService()
	ctx := context.Background()
	svc.Register(ctx, "Dr. Chen", "chen@clinic.test", "s3cretpass", "")

	token, _ := svc.ForgotPassword(ctx, "chen@clinic.test")
	for _, t2 := range tokens.tokens {
		t2.ExpiresAt = time.Now().Add(-time.Minute)
	}

	if err := svc.ResetPassword(ctx, token, "newpassword"); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("expected ErrInvalidResetToken, got %v", err)
	}
}

func TestPasswordReset_NewTokenInvalidatesOld(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Register(ctx, "Dr. Chen", "chen@clinic.test", "s3cretpass", "")

	first, _ := svc.ForgotPassword(ctx, "chen@clinic.test")
	second, _ := svc.ForgotPassword(ctx, "chen@clinic.test")

	if err := svc.ResetPassword(ctx, first, "newpassword"); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("expected replaced token to be invalid, got %v", err)
	}
	if err := svc.ResetPassword(ctx, second, "newpassword"); err != nil {
		t.Errorf("expected latest token to work, got %v", err)
	}
}
