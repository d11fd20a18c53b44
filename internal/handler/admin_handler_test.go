package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dunedivision/taskhub/internal/model"
)

// mockGroupAdmin はGroupAdminServiceのモック実装。
type mockGroupAdmin struct {
	findByNameFn   func(ctx context.Context, name string) (*model.Group, error)
	addMemberFn    func(ctx context.Context, groupID, userID string) error
	removeMemberFn func(ctx context.Context, groupID, userID string) error
}

func (m *mockGroupAdmin) FindByName(ctx context.Context, name string) (*model.Group, error) {
	if m.findByNameFn != nil {
		return m.findByNameFn(ctx, name)
	}
	return nil, nil
}

func (m *mockGroupAdmin) AddMember(ctx context.Context, groupID, userID string) error {
	if m.addMemberFn != nil {
		return m.addMemberFn(ctx, groupID, userID)
	}
	return nil
}

func (m *mockGroupAdmin) RemoveMember(ctx context.Context, groupID, userID string) error {
	if m.removeMemberFn != nil {
		return m.removeMemberFn(ctx, groupID, userID)
	}
	return nil
}

func adminRequest(method, userID string) *http.Request {
	req := httptest.NewRequest(method, "/api/admin/groups/team/members/user-2", nil)
	req = withUserID(req, userID)
	req = withChiURLParam(req, "name", "team")
	return withChiURLParam(req, "userID", "user-2")
}

func knownTeamGroup() *mockGroupAdmin {
	return &mockGroupAdmin{
		findByNameFn: func(ctx context.Context, name string) (*model.Group, error) {
			if name == "team" {
				return &model.Group{ID: "g-team", Name: "team"}, nil
			}
			return nil, nil
		},
	}
}

func TestAdminHandler_AddGroupMember_Success(t *testing.T) {
	staff := &model.User{ID: "user-1", Username: "admin", IsStaff: true}
	target := &model.User{ID: "user-2", Username: "bob"}

	groups := knownTeamGroup()
	addedGroup, addedUser := "", ""
	groups.addMemberFn = func(ctx context.Context, groupID, userID string) error {
		addedGroup, addedUser = groupID, userID
		return nil
	}

	h := NewAdminHandler(groups, loaderFor(staff, target))

	w := httptest.NewRecorder()
	h.AddGroupMember(w, adminRequest(http.MethodPut, "user-1"))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if addedGroup != "g-team" || addedUser != "user-2" {
		t.Errorf("added (%q, %q), want (g-team, user-2)", addedGroup, addedUser)
	}
}

func TestAdminHandler_NonStaffForbidden(t *testing.T) {
	regular := &model.User{ID: "user-1", Username: "alice"}

	groups := knownTeamGroup()
	called := false
	groups.addMemberFn = func(ctx context.Context, groupID, userID string) error {
		called = true
		return nil
	}

	h := NewAdminHandler(groups, loaderFor(regular))

	w := httptest.NewRecorder()
	h.AddGroupMember(w, adminRequest(http.MethodPut, "user-1"))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if called {
		t.Error("AddMember should not be called for non-staff user")
	}
}

func TestAdminHandler_SuperuserAllowed(t *testing.T) {
	super := &model.User{ID: "user-1", Username: "root", IsSuperuser: true}
	target := &model.User{ID: "user-2", Username: "bob"}

	h := NewAdminHandler(knownTeamGroup(), loaderFor(super, target))

	w := httptest.NewRecorder()
	h.RemoveGroupMember(w, adminRequest(http.MethodDelete, "user-1"))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestAdminHandler_UnknownGroup(t *testing.T) {
	staff := &model.User{ID: "user-1", Username: "admin", IsStaff: true}

	h := NewAdminHandler(&mockGroupAdmin{}, loaderFor(staff))

	w := httptest.NewRecorder()
	h.AddGroupMember(w, adminRequest(http.MethodPut, "user-1"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	result := parseAPIErrorResponse(t, w)
	if result["code"] != model.ErrCodeGroupNotFound {
		t.Errorf("code = %q, want %q", result["code"], model.ErrCodeGroupNotFound)
	}
}

func TestAdminHandler_UnknownTargetUser(t *testing.T) {
	staff := &model.User{ID: "user-1", Username: "admin", IsStaff: true}

	// 対象user-2は存在しない
	h := NewAdminHandler(knownTeamGroup(), loaderFor(staff))

	w := httptest.NewRecorder()
	h.AddGroupMember(w, adminRequest(http.MethodPut, "user-1"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	result := parseAPIErrorResponse(t, w)
	if result["code"] != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", result["code"], model.ErrCodeUserNotFound)
	}
}
