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

// NoteInput はメモの作成・更新入力。
type NoteInput struct {
	Title    string
	Content  string
	Tags     string
	GroupIDs []string
}

// NoteService はメモに関するビジネスロジックを提供する。
type NoteService struct {
	repo      repository.NoteRepository
	groupRepo repository.GroupRepository
	sanitizer security.ContentSanitizerService
}

// NewNoteService はNoteServiceを生成する。
func NewNoteService(
	repo repository.NoteRepository,
	groupRepo repository.GroupRepository,
	sanitizer security.ContentSanitizerService,
) *NoteService {
	return &NoteService{
		repo:      repo,
		groupRepo: groupRepo,
		sanitizer: sanitizer,
	}
}

// List はユーザーに可視なメモを作成日時の降順で1ページ分返す。
// 未認証の場合は空ページを返す。
func (s *NoteService) List(ctx context.Context, user *model.User, page int) (Page[*model.Note], error) {
	page, offset := pageOffset(page)
	if user == nil {
		return emptyPage[*model.Note](page), nil
	}

	notes, err := s.repo.ListVisible(ctx, user.ID, PageSize, offset)
	if err != nil {
		return Page[*model.Note]{}, fmt.Errorf("failed to list notes: %w", err)
	}
	total, err := s.repo.CountVisible(ctx, user.ID)
	if err != nil {
		return Page[*model.Note]{}, fmt.Errorf("failed to count notes: %w", err)
	}
	return newPage(notes, page, total), nil
}

// Create はメモを作成する。所有者は常に操作ユーザーに強制される。
func (s *NoteService) Create(ctx context.Context, user *model.User, in NoteInput) (*model.Note, error) {
	if !policy.CanCreate(policy.Input{User: user}) {
		return nil, model.NewUnauthorizedError()
	}

	note, err := s.buildNote(ctx, in)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	note.ID = uuid.New().String()
	note.OwnerID = user.ID
	note.CreatedAt = now
	note.UpdatedAt = now

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	slog.Info("note created",
		slog.String("note_id", note.ID),
		slog.String("owner_id", note.OwnerID),
	)
	return note, nil
}

// Get は指定IDのメモを返す。不可視の場合はNOT_FOUNDを返す。
func (s *NoteService) Get(ctx context.Context, user *model.User, id string) (*model.Note, error) {
	return s.findVisible(ctx, user, id)
}

// Update はメモを更新する。所有者とスーパーユーザーのみ。
func (s *NoteService) Update(ctx context.Context, user *model.User, id string, in NoteInput) (*model.Note, error) {
	note, err := s.findVisible(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanModify(policy.Input{User: user, ResourceOwnerID: note.OwnerID, ResourceGroupIDs: note.GroupIDs}) {
		return nil, model.NewForbiddenError()
	}

	updated, err := s.buildNote(ctx, in)
	if err != nil {
		return nil, err
	}
	note.Title = updated.Title
	note.Content = updated.Content
	note.Tags = updated.Tags
	note.GroupIDs = updated.GroupIDs
	note.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return note, nil
}

// Delete はメモを削除する。所有者とスーパーユーザーのみ。
func (s *NoteService) Delete(ctx context.Context, user *model.User, id string) error {
	note, err := s.findVisible(ctx, user, id)
	if err != nil {
		return err
	}
	if !policy.CanModify(policy.Input{User: user, ResourceOwnerID: note.OwnerID, ResourceGroupIDs: note.GroupIDs}) {
		return model.NewForbiddenError()
	}

	if err := s.repo.Delete(ctx, note.ID); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	slog.Info("note deleted", slog.String("note_id", id))
	return nil
}

// DeleteAny は可視性を問わずメモを削除する。
// Web画面のロールゲート通過後にのみ呼ばれる想定。
func (s *NoteService) DeleteAny(ctx context.Context, id string) error {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find note: %w", err)
	}
	if note == nil {
		return model.NewNotFoundError(model.KindNote, id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// buildNote は入力を検証・サニタイズしてNoteを組み立てる。
func (s *NoteService) buildNote(ctx context.Context, in NoteInput) (*model.Note, error) {
	title := s.sanitizer.SanitizeText(in.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}
	groupIDs, err := normalizeGroupIDs(ctx, s.groupRepo, in.GroupIDs)
	if err != nil {
		return nil, err
	}

	return &model.Note{
		Title:    title,
		Content:  s.sanitizer.Sanitize(in.Content),
		Tags:     s.sanitizer.SanitizeText(in.Tags),
		GroupIDs: groupIDs,
	}, nil
}

func (s *NoteService) findVisible(ctx context.Context, user *model.User, id string) (*model.Note, error) {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	if note == nil || !policy.CanView(policy.Input{User: user, ResourceOwnerID: note.OwnerID, ResourceGroupIDs: note.GroupIDs}) {
		return nil, model.NewNotFoundError(model.KindNote, id)
	}
	return note, nil
}
