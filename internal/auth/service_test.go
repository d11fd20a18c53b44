package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dunedivision/taskhub/internal/model"
)

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("hash format = %q", hash)
	}

	ok, err := VerifyPassword("correct horse battery", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword(correct) = %v, %v", ok, err)
	}

	ok, err = VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword(wrong) error = %v", err)
	}
	if ok {
		t.Error("VerifyPassword accepted a wrong password")
	}
}

func TestVerifyPassword_RejectsMalformedHash(t *testing.T) {
	if _, err := VerifyPassword("x", "not-a-hash"); err == nil {
		t.Error("expected error for malformed hash")
	}
}

type mockUserRepo struct {
	createFunc                 func(ctx context.Context, user *model.User) error
	findByIDFunc               func(ctx context.Context, id string) (*model.User, error)
	findByUsernameFunc         func(ctx context.Context, username string) (*model.User, error)
	findByEmailInsensitiveFunc func(ctx context.Context, email string) (*model.User, error)
	updateProfileFunc          func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return m.createFunc(ctx, user)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.findByUsernameFunc(ctx, username)
}

func (m *mockUserRepo) FindByEmailInsensitive(ctx context.Context, email string) (*model.User, error) {
	return m.findByEmailInsensitiveFunc(ctx, email)
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	return m.updateProfileFunc(ctx, user)
}

type mockGroupRepo struct {
	getOrCreateByNameFunc func(ctx context.Context, name string) (*model.Group, error)
	addMemberFunc         func(ctx context.Context, groupID, userID string) error
}

func (m *mockGroupRepo) GetOrCreateByName(ctx context.Context, name string) (*model.Group, error) {
	return m.getOrCreateByNameFunc(ctx, name)
}

func (m *mockGroupRepo) FindByName(ctx context.Context, name string) (*model.Group, error) {
	return nil, nil
}

func (m *mockGroupRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Group, error) {
	return nil, nil
}

func (m *mockGroupRepo) ListByUserID(ctx context.Context, userID string) ([]model.Group, error) {
	return nil, nil
}

func (m *mockGroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	return m.addMemberFunc(ctx, groupID, userID)
}

func (m *mockGroupRepo) RemoveMember(ctx context.Context, groupID, userID string) error {
	return nil
}

func (m *mockGroupRepo) ReplaceMembership(ctx context.Context, userID string, groupIDs []string) error {
	return nil
}

type mockSessionRepo struct {
	createFunc       func(ctx context.Context, session *model.Session) error
	findByIDFunc     func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFunc   func(ctx context.Context, id string) error
	deleteByUserFunc func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	return m.createFunc(ctx, session)
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteByIDFunc(ctx, id)
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.deleteByUserFunc(ctx, userID)
}

func newTestService(userRepo *mockUserRepo, groupRepo *mockGroupRepo, sessionRepo *mockSessionRepo) *Service {
	return NewService(userRepo, groupRepo, sessionRepo, ServiceConfig{
		SessionMaxAge:    3600,
		DefaultGroupName: "users",
	})
}

func TestRegister_CreatesUserWithDefaultGroup(t *testing.T) {
	var createdUser *model.User
	var addedGroup string
	userRepo := &mockUserRepo{
		findByUsernameFunc: func(_ context.Context, _ string) (*model.User, error) {
			return nil, nil
		},
		findByEmailInsensitiveFunc: func(_ context.Context, _ string) (*model.User, error) {
			return nil, nil
		},
		createFunc: func(_ context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	groupRepo := &mockGroupRepo{
		getOrCreateByNameFunc: func(_ context.Context, name string) (*model.Group, error) {
			return &model.Group{ID: "g1", Name: name}, nil
		},
		addMemberFunc: func(_ context.Context, groupID, _ string) error {
			addedGroup = groupID
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFunc: func(_ context.Context, _ *model.Session) error { return nil },
	}

	service := newTestService(userRepo, groupRepo, sessionRepo)
	user, session, err := service.Register(context.Background(), "alice", "alice@example.com", "longenough")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if createdUser == nil {
		t.Fatal("Create was not called")
	}
	if createdUser.PasswordHash == "" || createdUser.PasswordHash == "longenough" {
		t.Error("password was not hashed")
	}
	if addedGroup != "g1" {
		t.Errorf("default group AddMember = %q, want g1", addedGroup)
	}
	if session == nil || session.UserID != user.ID {
		t.Errorf("session = %+v", session)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("session already expired")
	}
}

func TestRegister_RejectsDuplicateUsername(t *testing.T) {
	userRepo := &mockUserRepo{
		findByUsernameFunc: func(_ context.Context, _ string) (*model.User, error) {
			return &model.User{ID: "u1", Username: "alice"}, nil
		},
	}

	service := newTestService(userRepo, &mockGroupRepo{}, &mockSessionRepo{})
	_, _, err := service.Register(context.Background(), "alice", "", "longenough")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "DUPLICATE_USER" {
		t.Errorf("error = %v, want DUPLICATE_USER", err)
	}
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	service := newTestService(&mockUserRepo{}, &mockGroupRepo{}, &mockSessionRepo{})
	_, _, err := service.Register(context.Background(), "alice", "", "short")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %v, want VALIDATION_ERROR", err)
	}
}

func TestLogin_WrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	hash, err := HashPassword("real password")
	if err != nil {
		t.Fatal(err)
	}
	userRepo := &mockUserRepo{
		findByUsernameFunc: func(_ context.Context, username string) (*model.User, error) {
			if username == "alice" {
				return &model.User{ID: "u1", Username: "alice", PasswordHash: hash}, nil
			}
			return nil, nil
		},
	}
	service := newTestService(userRepo, &mockGroupRepo{}, &mockSessionRepo{})

	_, _, errWrong := service.Login(context.Background(), "alice", "bad password")
	_, _, errUnknown := service.Login(context.Background(), "nobody", "whatever")

	for _, err := range []error{errWrong, errUnknown} {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_LOGIN" {
			t.Errorf("error = %v, want INVALID_LOGIN", err)
		}
	}
}

func TestLogin_Succeeds(t *testing.T) {
	hash, err := HashPassword("real password")
	if err != nil {
		t.Fatal(err)
	}
	userRepo := &mockUserRepo{
		findByUsernameFunc: func(_ context.Context, _ string) (*model.User, error) {
			return &model.User{ID: "u1", Username: "alice", PasswordHash: hash}, nil
		},
	}
	var saved *model.Session
	sessionRepo := &mockSessionRepo{
		createFunc: func(_ context.Context, session *model.Session) error {
			saved = session
			return nil
		},
	}

	service := newTestService(userRepo, &mockGroupRepo{}, sessionRepo)
	user, session, err := service.Login(context.Background(), "alice", "real password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.ID != "u1" || session == nil || saved == nil {
		t.Errorf("user = %+v, session = %+v", user, session)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64 hex chars", len(session.ID))
	}
}
