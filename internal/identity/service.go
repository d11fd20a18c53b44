// Package identity は外部IDプロバイダの検証済みクレームから
// ローカルユーザーとグループを同期する。
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/repository"
)

// Config はクレーム同期の設定。
type Config struct {
	// AdminGroupName はこの名前のグループがクレームに含まれる場合に
	// 権限昇格の対象とするグループ名。
	AdminGroupName string
	// ElevateStaff は管理グループ所属時にis_staffを付与するか。
	ElevateStaff bool
	// ElevateSuperuser は管理グループ所属時にis_superuserを付与するか。
	ElevateSuperuser bool
	// DefaultGroupName は新規ユーザーを初回作成時に所属させるグループ名。
	DefaultGroupName string
}

// Service はクレーム同期のビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	groupRepo repository.GroupRepository
	config    Config
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, groupRepo repository.GroupRepository, config Config) *Service {
	return &Service{
		userRepo:  userRepo,
		groupRepo: groupRepo,
		config:    config,
	}
}

// Sync は検証済みクレームからユーザーを作成または更新して返す。
//
// 既存ユーザーの照合はメールアドレスの大文字小文字を無視して行う
// （OIDC移行前からのユーザーを重複させないため）。グループ同期は
// 置換型: ユーザーの所属グループ集合はクレームのグループ名集合に
// 一致させる（不足グループは作成する）。権限昇格は自動だが降格は
// 自動では行わない。
func (s *Service) Sync(ctx context.Context, claims *model.Claims) (*model.User, error) {
	user, err := s.findExisting(ctx, claims)
	if err != nil {
		return nil, err
	}

	created := false
	now := time.Now()

	if user == nil {
		user = &model.User{
			ID:        uuid.New().String(),
			Username:  resolveUsername(claims),
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyClaims(user, claims)
		s.applyElevation(user, claims)

		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user from claims: %w", err)
		}
		created = true
	} else {
		applyClaims(user, claims)
		s.applyElevation(user, claims)
		user.UpdatedAt = now

		if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update user from claims: %w", err)
		}
	}

	groups, err := s.syncGroups(ctx, user, claims)
	if err != nil {
		return nil, err
	}
	user.Groups = groups

	// 初回作成時のみデフォルトグループに追加する。クレーム同期とは独立の
	// 作成後フック。以降の同期はクレームを正としてメンバーシップを置換する。
	if created && s.config.DefaultGroupName != "" {
		if err := s.addDefaultGroup(ctx, user); err != nil {
			return nil, err
		}
	}

	if created {
		slog.Info("user created from identity claims",
			slog.String("user_id", user.ID),
			slog.String("username", user.Username),
		)
	} else {
		slog.Info("user updated from identity claims",
			slog.String("user_id", user.ID),
			slog.String("username", user.Username),
		)
	}

	return user, nil
}

// findExisting はクレームに一致する既存ユーザーを検索する。
// メールでの照合を優先し、メールが無い場合は安定ユーザー名で照合する。
func (s *Service) findExisting(ctx context.Context, claims *model.Claims) (*model.User, error) {
	email := strings.TrimSpace(claims.Email)
	if email != "" {
		user, err := s.userRepo.FindByEmailInsensitive(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to match user by email: %w", err)
		}
		if user != nil {
			return user, nil
		}
	}

	user, err := s.userRepo.FindByUsername(ctx, resolveUsername(claims))
	if err != nil {
		return nil, fmt.Errorf("failed to match user by username: %w", err)
	}
	return user, nil
}

// syncGroups はクレームのグループ名集合をローカルグループに反映する。
// 不足グループは作成し、ユーザーのメンバーシップを置換する。
func (s *Service) syncGroups(ctx context.Context, user *model.User, claims *model.Claims) ([]model.Group, error) {
	names := normalizeGroupNames(claims.Groups)

	groups := make([]model.Group, 0, len(names))
	ids := make([]string, 0, len(names))
	for _, name := range names {
		group, err := s.groupRepo.GetOrCreateByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to ensure group %q: %w", name, err)
		}
		groups = append(groups, *group)
		ids = append(ids, group.ID)
	}

	if err := s.groupRepo.ReplaceMembership(ctx, user.ID, ids); err != nil {
		return nil, fmt.Errorf("failed to replace group membership: %w", err)
	}

	return groups, nil
}

// addDefaultGroup は新規ユーザーをデフォルトグループに追加する。
func (s *Service) addDefaultGroup(ctx context.Context, user *model.User) error {
	group, err := s.groupRepo.GetOrCreateByName(ctx, s.config.DefaultGroupName)
	if err != nil {
		return fmt.Errorf("failed to ensure default group: %w", err)
	}
	if err := s.groupRepo.AddMember(ctx, group.ID, user.ID); err != nil {
		return fmt.Errorf("failed to add user to default group: %w", err)
	}

	if !containsGroup(user.Groups, group.ID) {
		user.Groups = append(user.Groups, *group)
	}
	return nil
}

// applyElevation は管理グループ所属時の権限昇格を適用する。
// 管理グループがクレームから消えてもフラグは落とさない（降格は手動）。
func (s *Service) applyElevation(user *model.User, claims *model.Claims) {
	if s.config.AdminGroupName == "" {
		return
	}
	for _, name := range normalizeGroupNames(claims.Groups) {
		if name == s.config.AdminGroupName {
			if s.config.ElevateStaff {
				user.IsStaff = true
			}
			if s.config.ElevateSuperuser {
				user.IsSuperuser = true
			}
			return
		}
	}
}

// applyClaims はメールと氏名をクレームからユーザーへ反映する。
// 作成時・更新時の両方で呼ばれる。given/familyの明示クレームを優先し、
// 無ければ表示名を空白で分割する（先頭トークン→名、残り→姓）。
func applyClaims(user *model.User, claims *model.Claims) {
	if email := strings.TrimSpace(claims.Email); email != "" {
		user.Email = email
	}

	given := strings.TrimSpace(claims.GivenName)
	family := strings.TrimSpace(claims.FamilyName)
	name := strings.TrimSpace(claims.Name)

	switch {
	case given != "" || family != "":
		user.GivenName = given
		user.FamilyName = family
	case name != "":
		parts := strings.Fields(name)
		user.GivenName = parts[0]
		if len(parts) > 1 {
			user.FamilyName = strings.Join(parts[1:], " ")
		} else {
			user.FamilyName = ""
		}
	}
}

// resolveUsername は安定したローカルユーザー名を選択する。
// 優先順: sub、小文字化したメール、cognito:username、フォールバック。
func resolveUsername(claims *model.Claims) string {
	if sub := strings.TrimSpace(claims.Sub); sub != "" {
		return sub
	}
	if email := strings.ToLower(strings.TrimSpace(claims.Email)); email != "" {
		return email
	}
	if username := strings.TrimSpace(claims.CognitoUsername); username != "" {
		return username
	}
	return "user-" + uuid.New().String()
}

// normalizeGroupNames はグループ名を空白トリムし、空要素を除去する。
func normalizeGroupNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if trimmed := strings.TrimSpace(n); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func containsGroup(groups []model.Group, id string) bool {
	for _, g := range groups {
		if g.ID == id {
			return true
		}
	}
	return false
}
