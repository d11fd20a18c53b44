// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/dunedivision/taskhub/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを所属グループ込みで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmailInsensitive はメールアドレスの大文字小文字を無視してユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmailInsensitive(ctx context.Context, email string) (*model.User, error)

	// UpdateProfile はメール・氏名・権限フラグとupdated_atを更新する。
	// username、password_hash、created_atは変更しない。
	UpdateProfile(ctx context.Context, user *model.User) error
}

// GroupRepository はグループとメンバーシップの永続化インターフェース。
type GroupRepository interface {
	// GetOrCreateByName は指定名のグループを取得し、無ければ作成する。
	GetOrCreateByName(ctx context.Context, name string) (*model.Group, error)

	// FindByName はグループ名でグループを検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Group, error)

	// FindByIDs は指定ID群のグループを取得する。存在しないIDは結果に含まれない。
	FindByIDs(ctx context.Context, ids []string) ([]model.Group, error)

	// ListByUserID はユーザーの所属グループ一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Group, error)

	// AddMember はメンバーシップを冪等に追加する。
	AddMember(ctx context.Context, groupID, userID string) error

	// RemoveMember はメンバーシップを削除する。
	RemoveMember(ctx context.Context, groupID, userID string) error

	// ReplaceMembership はユーザーの所属グループ集合を指定ID群に置き換える。
	ReplaceMembership(ctx context.Context, userID string, groupIDs []string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// Create はタスクを作成し、共有グループを設定する。
	Create(ctx context.Context, task *model.Task) error

	// FindByID は指定IDのタスクを共有グループID込みで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// Update はタスクと共有グループを上書き更新する。owner_id、created_atは変更しない。
	Update(ctx context.Context, task *model.Task) error

	// Delete は指定IDのタスクを削除する。
	Delete(ctx context.Context, id string) error

	// ListVisible はユーザーに可視なタスク（所有∪グループ共有）を
	// created_at降順・重複なしで返す。一覧の要素は共有グループIDを含まない。
	ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Task, error)

	// CountVisible はユーザーに可視なタスクの総数を返す。
	CountVisible(ctx context.Context, userID string) (int, error)
}

// HabitRepository は習慣データの永続化インターフェース。
type HabitRepository interface {
	Create(ctx context.Context, habit *model.Habit) error
	FindByID(ctx context.Context, id string) (*model.Habit, error)
	Update(ctx context.Context, habit *model.Habit) error
	Delete(ctx context.Context, id string) error
	// ListVisible はstreak降順で可視な習慣を返す。
	ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Habit, error)
	CountVisible(ctx context.Context, userID string) (int, error)
}

// NoteRepository はメモデータの永続化インターフェース。
type NoteRepository interface {
	Create(ctx context.Context, note *model.Note) error
	FindByID(ctx context.Context, id string) (*model.Note, error)
	Update(ctx context.Context, note *model.Note) error
	Delete(ctx context.Context, id string) error
	// ListVisible はcreated_at降順で可視なメモを返す。
	ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Note, error)
	CountVisible(ctx context.Context, userID string) (int, error)
}

// EventRepository は予定データの永続化インターフェース。
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	FindByID(ctx context.Context, id string) (*model.Event, error)
	Update(ctx context.Context, event *model.Event) error
	Delete(ctx context.Context, id string) error
	// ListVisible はevent_date昇順で可視な予定を返す。
	ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Event, error)
	CountVisible(ctx context.Context, userID string) (int, error)
}
