package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/notify"
)

// mockSchedulerClient はnotify.SchedulerClientのモック実装。
type mockSchedulerClient struct {
	scheduleFn func(ctx context.Context, taskID string, req notify.ScheduleRequest) error
}

func (m *mockSchedulerClient) ScheduleTask(ctx context.Context, taskID string, req notify.ScheduleRequest) error {
	if m.scheduleFn != nil {
		return m.scheduleFn(ctx, taskID, req)
	}
	return nil
}

func testScheduleConfig() ScheduleHandlerConfig {
	return ScheduleHandlerConfig{BaseURL: "https://app.example.com", Timezone: "Europe/Berlin"}
}

func scheduleRequest(taskID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+taskID+"/schedule-reminder", nil)
	req = withUserID(req, "user-1")
	return withChiURLParam(req, "id", taskID)
}

func taskWithDueDate(ownerID string) *model.Task {
	due := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &model.Task{ID: "task-1", OwnerID: ownerID, Title: "t", DueDate: &due}
}

func TestScheduleHandler_Success(t *testing.T) {
	owner := testUser()
	svc := &mockTaskService{
		getFn: func(ctx context.Context, u *model.User, id string) (*model.Task, error) {
			return taskWithDueDate(owner.ID), nil
		},
	}
	var got notify.ScheduleRequest
	client := &mockSchedulerClient{
		scheduleFn: func(ctx context.Context, taskID string, req notify.ScheduleRequest) error {
			if taskID != "task-1" {
				t.Errorf("taskID = %q, want %q", taskID, "task-1")
			}
			got = req
			return nil
		},
	}
	h := NewScheduleHandler(svc, loaderFor(owner), client, testScheduleConfig(), nil)

	w := httptest.NewRecorder()
	h.ScheduleReminder(w, scheduleRequest("task-1"))

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if got.DueAtIso != "2025-03-01T09:00:00Z" {
		t.Errorf("DueAtIso = %q, want %q", got.DueAtIso, "2025-03-01T09:00:00Z")
	}
	if got.UserEmail != "alice@example.com" {
		t.Errorf("UserEmail = %q, want %q", got.UserEmail, "alice@example.com")
	}
	if got.Template != "TaskReminder" {
		t.Errorf("Template = %q, want %q", got.Template, "TaskReminder")
	}
	if got.CtaURL != "https://app.example.com/web/tasks" {
		t.Errorf("CtaURL = %q", got.CtaURL)
	}
	if got.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q", got.Timezone)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["status"] != "scheduled" {
		t.Errorf("status field = %q, want %q", result["status"], "scheduled")
	}
}

func TestScheduleHandler_SchedulerFailurePropagates(t *testing.T) {
	owner := testUser()
	svc := &mockTaskService{
		getFn: func(ctx context.Context, u *model.User, id string) (*model.Task, error) {
			return taskWithDueDate(owner.ID), nil
		},
	}
	client := &mockSchedulerClient{
		scheduleFn: func(ctx context.Context, taskID string, req notify.ScheduleRequest) error {
			return &model.SchedulerError{Status: 503, Body: `{"error": "maintenance"}`}
		},
	}
	h := NewScheduleHandler(svc, loaderFor(owner), client, testScheduleConfig(), nil)

	w := httptest.NewRecorder()
	h.ScheduleReminder(w, scheduleRequest("task-1"))

	// イベントバスと違い、スケジューラの失敗は502として呼び出し元へ返す
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["code"] != model.ErrCodeSchedulerFailed {
		t.Errorf("code = %v, want %q", result["code"], model.ErrCodeSchedulerFailed)
	}
	if result["status"] != float64(503) {
		t.Errorf("status field = %v, want 503", result["status"])
	}
	if result["body"] != `{"error": "maintenance"}` {
		t.Errorf("body field = %v", result["body"])
	}
}

func TestScheduleHandler_RejectsTaskWithoutDueDate(t *testing.T) {
	owner := testUser()
	svc := &mockTaskService{
		getFn: func(ctx context.Context, u *model.User, id string) (*model.Task, error) {
			return &model.Task{ID: "task-1", OwnerID: owner.ID, Title: "t"}, nil
		},
	}
	called := false
	client := &mockSchedulerClient{
		scheduleFn: func(ctx context.Context, taskID string, req notify.ScheduleRequest) error {
			called = true
			return nil
		},
	}
	h := NewScheduleHandler(svc, loaderFor(owner), client, testScheduleConfig(), nil)

	w := httptest.NewRecorder()
	h.ScheduleReminder(w, scheduleRequest("task-1"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Error("scheduler should not be called for a task without due date")
	}
}

func TestScheduleHandler_SharedMemberForbidden(t *testing.T) {
	// 共有グループ経由で可視なだけのユーザーは予約できない
	owner := &model.User{ID: "owner-1", Username: "owner", Email: "owner@example.com"}
	member := &model.User{ID: "user-1", Username: "member", Email: "member@example.com",
		Groups: []model.Group{{ID: "g-shared", Name: "team"}}}
	svc := &mockTaskService{
		getFn: func(ctx context.Context, u *model.User, id string) (*model.Task, error) {
			task := taskWithDueDate(owner.ID)
			task.GroupIDs = []string{"g-shared"}
			return task, nil
		},
	}
	h := NewScheduleHandler(svc, loaderFor(owner, member), &mockSchedulerClient{}, testScheduleConfig(), nil)

	w := httptest.NewRecorder()
	h.ScheduleReminder(w, scheduleRequest("task-1"))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
