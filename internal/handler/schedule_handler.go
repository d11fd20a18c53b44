package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/notify"
	"github.com/dunedivision/taskhub/internal/policy"
)

// SchedulerMetrics はリマインダー予約の成否を計測するインターフェース。nil可。
type SchedulerMetrics interface {
	SchedulerCallSucceeded()
	SchedulerCallFailed()
}

// ScheduleHandlerConfig はリマインダー予約ハンドラーの設定。
type ScheduleHandlerConfig struct {
	BaseURL  string // CTAリンクの基点URL
	Timezone string // リマインダー表示用タイムゾーン名
}

// ScheduleHandler はタスクのリマインダー予約APIのHTTPハンドラー。
// 外部スケジューラAPIの失敗はイベントバスと異なり呼び出し元へ伝播する。
type ScheduleHandler struct {
	tasks     TaskServiceInterface
	users     UserLoader
	scheduler notify.SchedulerClient
	config    ScheduleHandlerConfig
	metrics   SchedulerMetrics
}

// NewScheduleHandler はScheduleHandlerを生成する。
func NewScheduleHandler(
	tasks TaskServiceInterface,
	users UserLoader,
	scheduler notify.SchedulerClient,
	config ScheduleHandlerConfig,
	metrics SchedulerMetrics,
) *ScheduleHandler {
	return &ScheduleHandler{
		tasks:     tasks,
		users:     users,
		scheduler: scheduler,
		config:    config,
		metrics:   metrics,
	}
}

// ScheduleReminder は指定タスクのリマインダー送信を外部APIへ予約する。
// POST /api/tasks/:id/schedule-reminder
//
// 期限の無いタスクと所有者のメールアドレスが空のタスクは予約できない。
// スケジューラAPIのエラーは502でステータスとボディ込みのまま返す。
func (h *ScheduleHandler) ScheduleReminder(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	taskID := chi.URLParam(r, "id")
	task, err := h.tasks.Get(r.Context(), user, taskID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !policy.CanModify(policy.Input{User: user, ResourceOwnerID: task.OwnerID, ResourceGroupIDs: task.GroupIDs}) {
		handleServiceError(w, model.NewForbiddenError())
		return
	}
	if task.DueDate == nil {
		handleServiceError(w, model.NewValidationError("期限の無いタスクはリマインダーを予約できません"))
		return
	}

	ownerUser, err := h.users.FindByID(r.Context(), task.OwnerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if ownerUser == nil || ownerUser.Email == "" {
		handleServiceError(w, model.NewValidationError("所有者のメールアドレスが登録されていません"))
		return
	}

	req := notify.ScheduleRequest{
		DueAtIso:  notify.FormatDueAtIso(*task.DueDate),
		OwnerID:   ownerUser.ID,
		UserEmail: ownerUser.Email,
		Template:  "TaskReminder",
		CtaURL:    fmt.Sprintf("%s/web/tasks", h.config.BaseURL),
		UnsubURL:  fmt.Sprintf("%s/web/unsubscribe", h.config.BaseURL),
		Timezone:  h.config.Timezone,
	}

	if err := h.scheduler.ScheduleTask(r.Context(), task.ID, req); err != nil {
		if h.metrics != nil {
			h.metrics.SchedulerCallFailed()
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SchedulerCallSucceeded()
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id":  task.ID,
		"dueAtIso": req.DueAtIso,
		"status":   "scheduled",
	})
}
