package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/record"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	List(ctx context.Context, user *model.User, page int) (record.Page[*model.Task], error)
	Create(ctx context.Context, user *model.User, in record.TaskInput) (*model.Task, error)
	Get(ctx context.Context, user *model.User, id string) (*model.Task, error)
	Update(ctx context.Context, user *model.User, id string, in record.TaskInput) (*model.Task, error)
	Delete(ctx context.Context, user *model.User, id string) error
}

// RecordMetrics はレコード操作のメトリクス計測インターフェース。nil可。
type RecordMetrics interface {
	RecordCreated(kind string)
	RecordDeleted(kind string)
}

// TaskHandler はタスクAPIのHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
	users   UserLoader
	loc     *time.Location
	metrics RecordMetrics
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface, users UserLoader, loc *time.Location, metrics RecordMetrics) *TaskHandler {
	return &TaskHandler{
		service: service,
		users:   users,
		loc:     loc,
		metrics: metrics,
	}
}

type taskRequest struct {
	Title     string   `json:"title"`
	Completed bool     `json:"completed"`
	DueDate   string   `json:"due_date"` // RFC 3339またはタイムゾーン無しの日時
	Priority  string   `json:"priority"`
	Recurring bool     `json:"recurring"`
	Tags      string   `json:"tags"`
	Notes     string   `json:"notes"`
	GroupIDs  []string `json:"group_ids"`
}

type taskResponse struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`
	Title     string   `json:"title"`
	Completed bool     `json:"completed"`
	DueDate   *string  `json:"due_date"`
	Priority  string   `json:"priority"`
	Recurring bool     `json:"recurring"`
	Tags      string   `json:"tags"`
	Notes     string   `json:"notes"`
	GroupIDs  []string `json:"group_ids"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func toTaskResponse(task *model.Task) taskResponse {
	groupIDs := task.GroupIDs
	if groupIDs == nil {
		groupIDs = []string{}
	}
	return taskResponse{
		ID:        task.ID,
		OwnerID:   task.OwnerID,
		Title:     task.Title,
		Completed: task.Completed,
		DueDate:   formatTimePtr(task.DueDate),
		Priority:  string(task.Priority),
		Recurring: task.Recurring,
		Tags:      task.Tags,
		Notes:     task.Notes,
		GroupIDs:  groupIDs,
		CreatedAt: formatTime(task.CreatedAt),
		UpdatedAt: formatTime(task.UpdatedAt),
	}
}

// listResponse は一覧レスポンスの共通形式。
type listResponse[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func (h *TaskHandler) toInput(w http.ResponseWriter, r *http.Request) (record.TaskInput, bool) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return record.TaskInput{}, false
	}

	dueDate, err := record.ParseOptionalTime(req.DueDate, h.loc)
	if err != nil {
		handleServiceError(w, err)
		return record.TaskInput{}, false
	}

	return record.TaskInput{
		Title:     req.Title,
		Completed: req.Completed,
		DueDate:   dueDate,
		Priority:  model.Priority(req.Priority),
		Recurring: req.Recurring,
		Tags:      req.Tags,
		Notes:     req.Notes,
		GroupIDs:  req.GroupIDs,
	}, true
}

// ListTasks は可視なタスクの一覧を返す。
// GET /api/tasks?page=N
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, err := h.service.List(r.Context(), user, pageParam(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]taskResponse, len(page.Items))
	for i, task := range page.Items {
		items[i] = toTaskResponse(task)
	}
	writeJSON(w, http.StatusOK, listResponse[taskResponse]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	})
}

// CreateTask はタスクを作成する。
// POST /api/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	in, ok := h.toInput(w, r)
	if !ok {
		return
	}

	task, err := h.service.Create(r.Context(), user, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCreated(string(model.KindTask))
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

// GetTask はタスク詳細を返す。
// GET /api/tasks/:id
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	task, err := h.service.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// UpdateTask はタスクを更新する。
// PUT /api/tasks/:id
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	in, ok := h.toInput(w, r)
	if !ok {
		return
	}

	task, err := h.service.Update(r.Context(), user, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordDeleted(string(model.KindTask))
	}
	w.WriteHeader(http.StatusNoContent)
}
