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

// TaskCreatedHook はタスク作成直後に同期実行されるフック。
// 戻り値のエラーは記録されるがタスク作成の成否には影響しない。
type TaskCreatedHook func(ctx context.Context, task *model.Task, owner *model.User) error

// TaskInput はタスクの作成・更新入力。
type TaskInput struct {
	Title     string
	Completed bool
	DueDate   *time.Time
	Priority  model.Priority
	Recurring bool
	Tags      string
	Notes     string
	GroupIDs  []string
}

// TaskService はタスクに関するビジネスロジックを提供する。
type TaskService struct {
	repo      repository.TaskRepository
	groupRepo repository.GroupRepository
	sanitizer security.ContentSanitizerService
	hooks     []TaskCreatedHook
}

// NewTaskService はTaskServiceを生成する。
func NewTaskService(
	repo repository.TaskRepository,
	groupRepo repository.GroupRepository,
	sanitizer security.ContentSanitizerService,
) *TaskService {
	return &TaskService{
		repo:      repo,
		groupRepo: groupRepo,
		sanitizer: sanitizer,
	}
}

// RegisterCreatedHook は作成後フックを登録する。フックは登録順に実行される。
// 更新・削除では実行されない。
func (s *TaskService) RegisterCreatedHook(hook TaskCreatedHook) {
	s.hooks = append(s.hooks, hook)
}

// List はユーザーに可視なタスク（所有∪グループ共有）を
// 作成日時の降順で1ページ分返す。未認証の場合は空ページを返す。
func (s *TaskService) List(ctx context.Context, user *model.User, page int) (Page[*model.Task], error) {
	page, offset := pageOffset(page)
	if user == nil {
		return emptyPage[*model.Task](page), nil
	}

	tasks, err := s.repo.ListVisible(ctx, user.ID, PageSize, offset)
	if err != nil {
		return Page[*model.Task]{}, fmt.Errorf("failed to list tasks: %w", err)
	}
	total, err := s.repo.CountVisible(ctx, user.ID)
	if err != nil {
		return Page[*model.Task]{}, fmt.Errorf("failed to count tasks: %w", err)
	}
	return newPage(tasks, page, total), nil
}

// Create はタスクを作成する。所有者は常に操作ユーザーに強制される。
// 作成が成功した後、登録済みの作成後フックを同期実行する。
// フックの失敗は記録のみで、作成の成功応答を妨げない。
func (s *TaskService) Create(ctx context.Context, user *model.User, in TaskInput) (*model.Task, error) {
	if !policy.CanCreate(policy.Input{User: user}) {
		return nil, model.NewUnauthorizedError()
	}

	title := s.sanitizer.SanitizeText(in.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, model.NewValidationError("優先度はLow、Medium、Highのいずれかです")
	}
	groupIDs, err := normalizeGroupIDs(ctx, s.groupRepo, in.GroupIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	task := &model.Task{
		ID:        uuid.New().String(),
		OwnerID:   user.ID,
		Title:     title,
		Completed: in.Completed,
		DueDate:   in.DueDate,
		Priority:  priority,
		Recurring: in.Recurring,
		Tags:      s.sanitizer.SanitizeText(in.Tags),
		Notes:     s.sanitizer.Sanitize(in.Notes),
		GroupIDs:  groupIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	for _, hook := range s.hooks {
		if err := hook(ctx, task, user); err != nil {
			slog.Error("task created hook failed",
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("owner_id", task.OwnerID),
	)
	return task, nil
}

// Get は指定IDのタスクを返す。不可視の場合はNOT_FOUNDを返す。
func (s *TaskService) Get(ctx context.Context, user *model.User, id string) (*model.Task, error) {
	return s.findVisible(ctx, user, id)
}

// Update はタスクを更新する。所有者とスーパーユーザーのみ。
// 共有グループのメンバー（閲覧可）にはFORBIDDENを返す。
// 作成後フックは実行されない。
func (s *TaskService) Update(ctx context.Context, user *model.User, id string, in TaskInput) (*model.Task, error) {
	task, err := s.findVisible(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanModify(policy.Input{User: user, ResourceOwnerID: task.OwnerID, ResourceGroupIDs: task.GroupIDs}) {
		return nil, model.NewForbiddenError()
	}

	title := s.sanitizer.SanitizeText(in.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, model.NewValidationError("優先度はLow、Medium、Highのいずれかです")
	}
	groupIDs, err := normalizeGroupIDs(ctx, s.groupRepo, in.GroupIDs)
	if err != nil {
		return nil, err
	}

	task.Title = title
	task.Completed = in.Completed
	task.DueDate = in.DueDate
	task.Priority = priority
	task.Recurring = in.Recurring
	task.Tags = s.sanitizer.SanitizeText(in.Tags)
	task.Notes = s.sanitizer.Sanitize(in.Notes)
	task.GroupIDs = groupIDs
	task.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// Delete はタスクを削除する。所有者とスーパーユーザーのみ。
func (s *TaskService) Delete(ctx context.Context, user *model.User, id string) error {
	task, err := s.findVisible(ctx, user, id)
	if err != nil {
		return err
	}
	if !policy.CanModify(policy.Input{User: user, ResourceOwnerID: task.OwnerID, ResourceGroupIDs: task.GroupIDs}) {
		return model.NewForbiddenError()
	}

	if err := s.repo.Delete(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	slog.Info("task deleted", slog.String("task_id", id))
	return nil
}

// DeleteAny は可視性を問わずタスクを削除する。
// Web画面のロールゲート通過後にのみ呼ばれる想定。
func (s *TaskService) DeleteAny(ctx context.Context, id string) error {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find task: %w", err)
	}
	if task == nil {
		return model.NewNotFoundError(model.KindTask, id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// findVisible はタスクを取得し、閲覧ポリシーで不可視ならNOT_FOUNDに丸める。
func (s *TaskService) findVisible(ctx context.Context, user *model.User, id string) (*model.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task == nil || !policy.CanView(policy.Input{User: user, ResourceOwnerID: task.OwnerID, ResourceGroupIDs: task.GroupIDs}) {
		return nil, model.NewNotFoundError(model.KindTask, id)
	}
	return task, nil
}
