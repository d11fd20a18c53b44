package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/dunedivision/taskhub/internal/model"
)

// DispatchRecorder はイベント送出の成否を計測するインターフェース。
type DispatchRecorder interface {
	TaskDispatchSucceeded()
	TaskDispatchFailed()
}

// Dispatcher はタスク作成イベントをイベントバスへ送出する。
// record.TaskServiceの作成後フックとして登録される。
type Dispatcher struct {
	bus      EventBus
	logger   *slog.Logger
	recorder DispatchRecorder // nil可
}

// NewDispatcher はDispatcherを生成する。recorderはnilでもよい。
func NewDispatcher(bus EventBus, logger *slog.Logger, recorder DispatchRecorder) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		logger:   logger,
		recorder: recorder,
	}
}

// HandleTaskCreated はタスク作成直後に呼ばれる。
//
// 期限の無いタスクと、所有者のメールアドレスが空のタスクは送出対象外。
// バス発行の失敗は記録するだけでエラーを返さない。通知は配達保証の無い
// 付随機能であり、タスク作成の成功を妨げてはならない。
func (d *Dispatcher) HandleTaskCreated(ctx context.Context, task *model.Task, owner *model.User) error {
	if task.DueDate == nil || owner == nil || owner.Email == "" {
		return nil
	}

	detail := TaskCreatedDetail{
		TaskID:     task.ID,
		OwnerID:    owner.ID,
		OwnerEmail: owner.Email,
		OwnerName:  owner.DisplayName(),
		TaskTitle:  task.Title,
		DueAtIso:   FormatDueAtIso(*task.DueDate),
	}

	if err := d.bus.PutTaskCreated(ctx, detail); err != nil {
		if d.recorder != nil {
			d.recorder.TaskDispatchFailed()
		}
		d.logger.Error("failed to dispatch task created event",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if d.recorder != nil {
		d.recorder.TaskDispatchSucceeded()
	}
	d.logger.Info("task created event dispatched",
		slog.String("task_id", task.ID),
		slog.String("due_at", detail.DueAtIso),
	)
	return nil
}

// FormatDueAtIso は期限をUTCの秒精度ISO 8601文字列（Zサフィックス）に整形する。
func FormatDueAtIso(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}
