package record

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/policy"
	"github.com/dunedivision/taskhub/internal/repository"
	"github.com/dunedivision/taskhub/internal/security"
)

// HabitInput は習慣の作成・更新入力。
type HabitInput struct {
	Name      string
	Frequency model.Frequency
	LastDone  *time.Time
	Streak    int
	Notes     string
	GroupIDs  []string
}

// HabitService は習慣に関するビジネスロジックを提供する。
type HabitService struct {
	repo      repository.HabitRepository
	groupRepo repository.GroupRepository
	sanitizer security.ContentSanitizerService
}

// NewHabitService はHabitServiceを生成する。
func NewHabitService(
	repo repository.HabitRepository,
	groupRepo repository.GroupRepository,
	sanitizer security.ContentSanitizerService,
) *HabitService {
	return &HabitService{
		repo:      repo,
		groupRepo: groupRepo,
		sanitizer: sanitizer,
	}
}

// List はユーザーに可視な習慣をstreakの降順で1ページ分返す。
// 未認証の場合は空ページを返す。
func (s *HabitService) List(ctx context.Context, user *model.User, page int) (Page[*model.Habit], error) {
	page, offset := pageOffset(page)
	if user == nil {
		return emptyPage[*model.Habit](page), nil
	}

	habits, err := s.repo.ListVisible(ctx, user.ID, PageSize, offset)
	if err != nil {
		return Page[*model.Habit]{}, fmt.Errorf("failed to list habits: %w", err)
	}
	total, err := s.repo.CountVisible(ctx, user.ID)
	if err != nil {
		return Page[*model.Habit]{}, fmt.Errorf("failed to count habits: %w", err)
	}
	return newPage(habits, page, total), nil
}

// Create は習慣を作成する。所有者は常に操作ユーザーに強制される。
func (s *HabitService) Create(ctx context.Context, user *model.User, in HabitInput) (*model.Habit, error) {
	if !policy.CanCreate(policy.Input{User: user}) {
		return nil, model.NewUnauthorizedError()
	}

	habit, err := s.buildHabit(ctx, in)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	habit.ID = uuid.New().String()
	habit.OwnerID = user.ID
	habit.CreatedAt = now
	habit.UpdatedAt = now

	if err := s.repo.Create(ctx, habit); err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}

	slog.Info("habit created",
		slog.String("habit_id", habit.ID),
		slog.String("owner_id", habit.OwnerID),
	)
	return habit, nil
}

// Get は指定IDの習慣を返す。不可視の場合はNOT_FOUNDを返す。
func (s *HabitService) Get(ctx context.Context, user *model.User, id string) (*model.Habit, error) {
	return s.findVisible(ctx, user, id)
}

// Update は習慣を更新する。所有者とスーパーユーザーのみ。
func (s *HabitService) Update(ctx context.Context, user *model.User, id string, in HabitInput) (*model.Habit, error) {
	habit, err := s.findVisible(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanModify(policy.Input{User: user, ResourceOwnerID: habit.OwnerID, ResourceGroupIDs: habit.GroupIDs}) {
		return nil, model.NewForbiddenError()
	}

	updated, err := s.buildHabit(ctx, in)
	if err != nil {
		return nil, err
	}
	habit.Name = updated.Name
	habit.Frequency = updated.Frequency
	habit.LastDone = updated.LastDone
	habit.Streak = updated.Streak
	habit.Notes = updated.Notes
	habit.GroupIDs = updated.GroupIDs
	habit.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, habit); err != nil {
		return nil, fmt.Errorf("failed to update habit: %w", err)
	}
	return habit, nil
}

// Delete は習慣を削除する。所有者とスーパーユーザーのみ。
func (s *HabitService) Delete(ctx context.Context, user *model.User, id string) error {
	habit, err := s.findVisible(ctx, user, id)
	if err != nil {
		return err
	}
	if !policy.CanModify(policy.Input{User: user, ResourceOwnerID: habit.OwnerID, ResourceGroupIDs: habit.GroupIDs}) {
		return model.NewForbiddenError()
	}

	if err := s.repo.Delete(ctx, habit.ID); err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	slog.Info("habit deleted", slog.String("habit_id", id))
	return nil
}

// DeleteAny は可視性を問わず習慣を削除する。
// Web画面のロールゲート通過後にのみ呼ばれる想定。
func (s *HabitService) DeleteAny(ctx context.Context, id string) error {
	habit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find habit: %w", err)
	}
	if habit == nil {
		return model.NewNotFoundError(model.KindHabit, id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	return nil
}

// buildHabit は入力を検証・サニタイズしてHabitを組み立てる。
func (s *HabitService) buildHabit(ctx context.Context, in HabitInput) (*model.Habit, error) {
	name := s.sanitizer.SanitizeText(in.Name)
	if name == "" {
		return nil, model.NewValidationError("習慣名は必須です")
	}
	frequency := in.Frequency
	if frequency == "" {
		frequency = model.FrequencyDaily
	}
	if !frequency.Valid() {
		return nil, model.NewValidationError("頻度はDaily、Weekly、Monthlyのいずれかです")
	}
	if in.Streak < 0 {
		return nil, model.NewValidationError("継続日数は0以上です")
	}
	groupIDs, err := normalizeGroupIDs(ctx, s.groupRepo, in.GroupIDs)
	if err != nil {
		return nil, err
	}

	return &model.Habit{
		Name:      name,
		Frequency: frequency,
		LastDone:  in.LastDone,
		Streak:    in.Streak,
		Notes:     s.sanitizer.Sanitize(in.Notes),
		GroupIDs:  groupIDs,
	}, nil
}

func (s *HabitService) findVisible(ctx context.Context, user *model.User, id string) (*model.Habit, error) {
	habit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find habit: %w", err)
	}
	if habit == nil || !policy.CanView(policy.Input{User: user, ResourceOwnerID: habit.OwnerID, ResourceGroupIDs: habit.GroupIDs}) {
		return nil, model.NewNotFoundError(model.KindHabit, id)
	}
	return habit, nil
}
