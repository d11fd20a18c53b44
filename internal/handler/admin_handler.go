package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/policy"
)

// GroupAdminService は管理ハンドラーが必要とするグループ操作インターフェース。
// repository.GroupRepositoryの部分集合として定義する。
type GroupAdminService interface {
	FindByName(ctx context.Context, name string) (*model.Group, error)
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
}

// AdminHandler はグループメンバーシップ管理のHTTPハンドラー。
// スタッフまたはスーパーユーザーのみ操作できる。
type AdminHandler struct {
	groups GroupAdminService
	users  UserLoader
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(groups GroupAdminService, users UserLoader) *AdminHandler {
	return &AdminHandler{
		groups: groups,
		users:  users,
	}
}

// AddGroupMember はユーザーをグループへ追加する。冪等。
// PUT /api/admin/groups/:name/members/:userID
func (h *AdminHandler) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	group, targetID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.groups.AddMember(r.Context(), group.ID, targetID); err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("group member added",
		slog.String("group", group.Name),
		slog.String("user_id", targetID),
	)
	w.WriteHeader(http.StatusNoContent)
}

// RemoveGroupMember はユーザーをグループから外す。
// DELETE /api/admin/groups/:name/members/:userID
func (h *AdminHandler) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	group, targetID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.groups.RemoveMember(r.Context(), group.ID, targetID); err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("group member removed",
		slog.String("group", group.Name),
		slog.String("user_id", targetID),
	)
	w.WriteHeader(http.StatusNoContent)
}

// authorize はスタッフ権限と対象グループ・ユーザーの存在を検証する。
func (h *AdminHandler) authorize(w http.ResponseWriter, r *http.Request) (*model.Group, string, bool) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return nil, "", false
	}
	if !policy.IsStaff(policy.Input{User: user}) {
		handleServiceError(w, model.NewForbiddenError())
		return nil, "", false
	}

	groupName := chi.URLParam(r, "name")
	group, err := h.groups.FindByName(r.Context(), groupName)
	if err != nil {
		handleServiceError(w, err)
		return nil, "", false
	}
	if group == nil {
		handleServiceError(w, model.NewGroupNotFoundError(groupName))
		return nil, "", false
	}

	targetID := chi.URLParam(r, "userID")
	target, err := h.users.FindByID(r.Context(), targetID)
	if err != nil {
		handleServiceError(w, err)
		return nil, "", false
	}
	if target == nil {
		handleServiceError(w, model.NewUserNotFoundError())
		return nil, "", false
	}

	return group, targetID, true
}
