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

// EventInput は予定の作成・更新入力。
type EventInput struct {
	Title       string
	EventDate   *time.Time
	Location    string
	Description string
	Reminder    *time.Time
	Tags        string
	GroupIDs    []string
}

// EventService は予定に関するビジネスロジックを提供する。
type EventService struct {
	repo      repository.EventRepository
	groupRepo repository.GroupRepository
	sanitizer security.ContentSanitizerService
}

// NewEventService はEventServiceを生成する。
func NewEventService(
	repo repository.EventRepository,
	groupRepo repository.GroupRepository,
	sanitizer security.ContentSanitizerService,
) *EventService {
	return &EventService{
		repo:      repo,
		groupRepo: groupRepo,
		sanitizer: sanitizer,
	}
}

// List はユーザーに可視な予定を開催日時の昇順で1ページ分返す。
// 未認証の場合は空ページを返す。
func (s *EventService) List(ctx context.Context, user *model.User, page int) (Page[*model.Event], error) {
	page, offset := pageOffset(page)
	if user == nil {
		return emptyPage[*model.Event](page), nil
	}

	events, err := s.repo.ListVisible(ctx, user.ID, PageSize, offset)
	if err != nil {
		return Page[*model.Event]{}, fmt.Errorf("failed to list events: %w", err)
	}
	total, err := s.repo.CountVisible(ctx, user.ID)
	if err != nil {
		return Page[*model.Event]{}, fmt.Errorf("failed to count events: %w", err)
	}
	return newPage(events, page, total), nil
}

// Create は予定を作成する。所有者は常に操作ユーザーに強制される。
func (s *EventService) Create(ctx context.Context, user *model.User, in EventInput) (*model.Event, error) {
	if !policy.CanCreate(policy.Input{User: user}) {
		return nil, model.NewUnauthorizedError()
	}

	event, err := s.buildEvent(ctx, in)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	event.ID = uuid.New().String()
	event.OwnerID = user.ID
	event.CreatedAt = now
	event.UpdatedAt = now

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	slog.Info("event created",
		slog.String("event_id", event.ID),
		slog.String("owner_id", event.OwnerID),
	)
	return event, nil
}

// Get は指定IDの予定を返す。不可視の場合はNOT_FOUNDを返す。
func (s *EventService) Get(ctx context.Context, user *model.User, id string) (*model.Event, error) {
	return s.findVisible(ctx, user, id)
}

// Update は予定を更新する。所有者とスーパーユーザーのみ。
func (s *EventService) Update(ctx context.Context, user *model.User, id string, in EventInput) (*model.Event, error) {
	event, err := s.findVisible(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanModify(policy.Input{User: user, ResourceOwnerID: event.OwnerID, ResourceGroupIDs: event.GroupIDs}) {
		return nil, model.NewForbiddenError()
	}

	updated, err := s.buildEvent(ctx, in)
	if err != nil {
		return nil, err
	}
	event.Title = updated.Title
	event.EventDate = updated.EventDate
	event.Location = updated.Location
	event.Description = updated.Description
	event.Reminder = updated.Reminder
	event.Tags = updated.Tags
	event.GroupIDs = updated.GroupIDs
	event.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return event, nil
}

// Delete は予定を削除する。所有者とスーパーユーザーのみ。
func (s *EventService) Delete(ctx context.Context, user *model.User, id string) error {
	event, err := s.findVisible(ctx, user, id)
	if err != nil {
		return err
	}
	if !policy.CanModify(policy.Input{User: user, ResourceOwnerID: event.OwnerID, ResourceGroupIDs: event.GroupIDs}) {
		return model.NewForbiddenError()
	}

	if err := s.repo.Delete(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	slog.Info("event deleted", slog.String("event_id", id))
	return nil
}

// DeleteAny は可視性を問わず予定を削除する。
// Web画面のロールゲート通過後にのみ呼ばれる想定。
func (s *EventService) DeleteAny(ctx context.Context, id string) error {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find event: %w", err)
	}
	if event == nil {
		return model.NewNotFoundError(model.KindEvent, id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// buildEvent は入力を検証・サニタイズしてEventを組み立てる。
func (s *EventService) buildEvent(ctx context.Context, in EventInput) (*model.Event, error) {
	title := s.sanitizer.SanitizeText(in.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}
	if in.EventDate == nil {
		return nil, model.NewValidationError("開催日時は必須です")
	}
	groupIDs, err := normalizeGroupIDs(ctx, s.groupRepo, in.GroupIDs)
	if err != nil {
		return nil, err
	}

	return &model.Event{
		Title:       title,
		EventDate:   *in.EventDate,
		Location:    s.sanitizer.SanitizeText(in.Location),
		Description: s.sanitizer.Sanitize(in.Description),
		Reminder:    in.Reminder,
		Tags:        s.sanitizer.SanitizeText(in.Tags),
		GroupIDs:    groupIDs,
	}, nil
}

func (s *EventService) findVisible(ctx context.Context, user *model.User, id string) (*model.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	if event == nil || !policy.CanView(policy.Input{User: user, ResourceOwnerID: event.OwnerID, ResourceGroupIDs: event.GroupIDs}) {
		return nil, model.NewNotFoundError(model.KindEvent, id)
	}
	return event, nil
}
