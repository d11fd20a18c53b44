package identity

import (
	"context"
	"testing"
	"time"

	"github.com/dunedivision/taskhub/internal/model"
)

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
	findByNameFunc        func(ctx context.Context, name string) (*model.Group, error)
	findByIDsFunc         func(ctx context.Context, ids []string) ([]model.Group, error)
	listByUserIDFunc      func(ctx context.Context, userID string) ([]model.Group, error)
	addMemberFunc         func(ctx context.Context, groupID, userID string) error
	removeMemberFunc      func(ctx context.Context, groupID, userID string) error
	replaceMembershipFunc func(ctx context.Context, userID string, groupIDs []string) error
}

func (m *mockGroupRepo) GetOrCreateByName(ctx context.Context, name string) (*model.Group, error) {
	return m.getOrCreateByNameFunc(ctx, name)
}

func (m *mockGroupRepo) FindByName(ctx context.Context, name string) (*model.Group, error) {
	return m.findByNameFunc(ctx, name)
}

func (m *mockGroupRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Group, error) {
	return m.findByIDsFunc(ctx, ids)
}

func (m *mockGroupRepo) ListByUserID(ctx context.Context, userID string) ([]model.Group, error) {
	return m.listByUserIDFunc(ctx, userID)
}

func (m *mockGroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	return m.addMemberFunc(ctx, groupID, userID)
}

func (m *mockGroupRepo) RemoveMember(ctx context.Context, groupID, userID string) error {
	return m.removeMemberFunc(ctx, groupID, userID)
}

func (m *mockGroupRepo) ReplaceMembership(ctx context.Context, userID string, groupIDs []string) error {
	return m.replaceMembershipFunc(ctx, userID, groupIDs)
}

func testConfig() Config {
	return Config{
		AdminGroupName:   "Admin",
		ElevateStaff:     true,
		ElevateSuperuser: false,
		DefaultGroupName: "users",
	}
}

// groupRepoByName はグループ名→IDの固定対応で動くモックを返す。
func groupRepoByName(t *testing.T) (*mockGroupRepo, *[]string, *[]string) {
	t.Helper()
	var replaced []string
	var added []string
	repo := &mockGroupRepo{
		getOrCreateByNameFunc: func(_ context.Context, name string) (*model.Group, error) {
			return &model.Group{ID: "gid-" + name, Name: name, CreatedAt: time.Now()}, nil
		},
		replaceMembershipFunc: func(_ context.Context, _ string, groupIDs []string) error {
			replaced = groupIDs
			return nil
		},
		addMemberFunc: func(_ context.Context, groupID, _ string) error {
			added = append(added, groupID)
			return nil
		},
	}
	return repo, &replaced, &added
}

func TestSync_CreatesUserFromClaims(t *testing.T) {
	var created *model.User
	userRepo := &mockUserRepo{
		findByEmailInsensitiveFunc: func(_ context.Context, _ string) (*model.User, error) {
			return nil, nil
		},
		findByUsernameFunc: func(_ context.Context, _ string) (*model.User, error) {
			return nil, nil
		},
		createFunc: func(_ context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	groupRepo, replaced, added := groupRepoByName(t)

	service := NewService(userRepo, groupRepo, testConfig())
	user, err := service.Sync(context.Background(), &model.Claims{
		Sub:    "sub-123",
		Email:  "Alice@Example.com",
		Name:   "Alice Smith",
		Groups: []string{"Team A"},
	})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if created == nil {
		t.Fatal("Create was not called")
	}
	if user.Username != "sub-123" {
		t.Errorf("Username = %q, want sub claim", user.Username)
	}
	if user.Email != "Alice@Example.com" {
		t.Errorf("Email = %q", user.Email)
	}
	if user.GivenName != "Alice" || user.FamilyName != "Smith" {
		t.Errorf("name split = %q / %q", user.GivenName, user.FamilyName)
	}
	if len(*replaced) != 1 || (*replaced)[0] != "gid-Team A" {
		t.Errorf("ReplaceMembership got %v", *replaced)
	}
	if len(*added) != 1 || (*added)[0] != "gid-users" {
		t.Errorf("default group AddMember got %v", *added)
	}
}

func TestSync_MatchesExistingByEmailCaseInsensitive(t *testing.T) {
	existing := &model.User{ID: "u1", Username: "legacy", Email: "alice@example.com"}
	var updated *model.User
	userRepo := &mockUserRepo{
		findByEmailInsensitiveFunc: func(_ context.Context, email string) (*model.User, error) {
			if email != "ALICE@example.com" {
				t.Errorf("lookup email = %q", email)
			}
			return existing, nil
		},
		updateProfileFunc: func(_ context.Context, user *model.User) error {
			updated = user
			return nil
		},
	}
	groupRepo, _, added := groupRepoByName(t)

	service := NewService(userRepo, groupRepo, testConfig())
	user, err := service.Sync(context.Background(), &model.Claims{
		Sub:   "sub-999",
		Email: "ALICE@example.com",
	})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if updated == nil {
		t.Fatal("UpdateProfile was not called")
	}
	if user.ID != "u1" {
		t.Errorf("matched user ID = %q, want u1", user.ID)
	}
	if user.Username != "legacy" {
		t.Errorf("existing username must not change, got %q", user.Username)
	}
	if len(*added) != 0 {
		t.Errorf("default group must not be added for existing users, got %v", *added)
	}
}

func TestSync_UsernamePreferenceOrder(t *testing.T) {
	tests := []struct {
		name   string
		claims model.Claims
		want   string
	}{
		{"sub wins", model.Claims{Sub: "s", Email: "E@x.com", CognitoUsername: "c"}, "s"},
		{"email lowered", model.Claims{Email: "Bob@X.com", CognitoUsername: "c"}, "bob@x.com"},
		{"cognito username", model.Claims{CognitoUsername: "cog"}, "cog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveUsername(&tt.claims); got != tt.want {
				t.Errorf("resolveUsername() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSync_AdminGroupElevatesStaff(t *testing.T) {
	existing := &model.User{ID: "u1", Username: "sub-1", Email: "a@x.com"}
	userRepo := &mockUserRepo{
		findByEmailInsensitiveFunc: func(_ context.Context, _ string) (*model.User, error) {
			return existing, nil
		},
		updateProfileFunc: func(_ context.Context, _ *model.User) error { return nil },
	}
	groupRepo, _, _ := groupRepoByName(t)

	service := NewService(userRepo, groupRepo, testConfig())
	user, err := service.Sync(context.Background(), &model.Claims{
		Sub:    "sub-1",
		Email:  "a@x.com",
		Groups: []string{"Admin"},
	})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !user.IsStaff {
		t.Error("IsStaff = false, want elevation for admin group")
	}
	if user.IsSuperuser {
		t.Error("IsSuperuser = true, want false when elevation disabled")
	}

	// 管理グループがクレームから消えても降格しない。
	user2, err := service.Sync(context.Background(), &model.Claims{
		Sub:   "sub-1",
		Email: "a@x.com",
	})
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if !user2.IsStaff {
		t.Error("IsStaff dropped on second sync, elevation must not auto-revoke")
	}
}

func TestSync_ReplacesMembershipAuthoritatively(t *testing.T) {
	existing := &model.User{ID: "u1", Username: "sub-1", Email: "a@x.com",
		Groups: []model.Group{{ID: "gid-Old", Name: "Old"}}}
	userRepo := &mockUserRepo{
		findByEmailInsensitiveFunc: func(_ context.Context, _ string) (*model.User, error) {
			return existing, nil
		},
		updateProfileFunc: func(_ context.Context, _ *model.User) error { return nil },
	}
	groupRepo, replaced, _ := groupRepoByName(t)

	service := NewService(userRepo, groupRepo, testConfig())
	user, err := service.Sync(context.Background(), &model.Claims{
		Sub:    "sub-1",
		Email:  "a@x.com",
		Groups: []string{"New", " ", "Other"},
	})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	want := []string{"gid-New", "gid-Other"}
	if len(*replaced) != len(want) {
		t.Fatalf("ReplaceMembership got %v, want %v", *replaced, want)
	}
	for i := range want {
		if (*replaced)[i] != want[i] {
			t.Errorf("ReplaceMembership[%d] = %q, want %q", i, (*replaced)[i], want[i])
		}
	}
	if len(user.Groups) != 2 {
		t.Errorf("user.Groups = %v, want claims groups only", user.Groups)
	}
}
