package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/record"
)

// HabitServiceInterface は習慣ハンドラーが必要とするサービスインターフェース。
type HabitServiceInterface interface {
	List(ctx context.Context, user *model.User, page int) (record.Page[*model.Habit], error)
	Create(ctx context.Context, user *model.User, in record.HabitInput) (*model.Habit, error)
	Get(ctx context.Context, user *model.User, id string) (*model.Habit, error)
	Update(ctx context.Context, user *model.User, id string, in record.HabitInput) (*model.Habit, error)
	Delete(ctx context.Context, user *model.User, id string) error
}

// HabitHandler は習慣APIのHTTPハンドラー。
type HabitHandler struct {
	service HabitServiceInterface
	users   UserLoader
	loc     *time.Location
	metrics RecordMetrics
}

// NewHabitHandler はHabitHandlerを生成する。
func NewHabitHandler(service HabitServiceInterface, users UserLoader, loc *time.Location, metrics RecordMetrics) *HabitHandler {
	return &HabitHandler{
		service: service,
		users:   users,
		loc:     loc,
		metrics: metrics,
	}
}

type habitRequest struct {
	Name      string   `json:"name"`
	Frequency string   `json:"frequency"`
	LastDone  string   `json:"last_done"`
	Streak    int      `json:"streak"`
	Notes     string   `json:"notes"`
	GroupIDs  []string `json:"group_ids"`
}

type habitResponse struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`
	Name      string   `json:"name"`
	Frequency string   `json:"frequency"`
	LastDone  *string  `json:"last_done"`
	Streak    int      `json:"streak"`
	Notes     string   `json:"notes"`
	GroupIDs  []string `json:"group_ids"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func toHabitResponse(habit *model.Habit) habitResponse {
	groupIDs := habit.GroupIDs
	if groupIDs == nil {
		groupIDs = []string{}
	}
	return habitResponse{
		ID:        habit.ID,
		OwnerID:   habit.OwnerID,
		Name:      habit.Name,
		Frequency: string(habit.Frequency),
		LastDone:  formatTimePtr(habit.LastDone),
		Streak:    habit.Streak,
		Notes:     habit.Notes,
		GroupIDs:  groupIDs,
		CreatedAt: formatTime(habit.CreatedAt),
		UpdatedAt: formatTime(habit.UpdatedAt),
	}
}

func (h *HabitHandler) toInput(w http.ResponseWriter, r *http.Request) (record.HabitInput, bool) {
	var req habitRequest
	if !decodeJSON(w, r, &req) {
		return record.HabitInput{}, false
	}

	lastDone, err := record.ParseOptionalTime(req.LastDone, h.loc)
	if err != nil {
		handleServiceError(w, err)
		return record.HabitInput{}, false
	}

	return record.HabitInput{
		Name:      req.Name,
		Frequency: model.Frequency(req.Frequency),
		LastDone:  lastDone,
		Streak:    req.Streak,
		Notes:     req.Notes,
		GroupIDs:  req.GroupIDs,
	}, true
}

// ListHabits は可視な習慣の一覧をstreak降順で返す。
// GET /api/habits?page=N
func (h *HabitHandler) ListHabits(w http.ResponseWriter, r *http.Request) {
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

	items := make([]habitResponse, len(page.Items))
	for i, habit := range page.Items {
		items[i] = toHabitResponse(habit)
	}
	writeJSON(w, http.StatusOK, listResponse[habitResponse]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	})
}

// CreateHabit は習慣を作成する。
// POST /api/habits
func (h *HabitHandler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	in, ok := h.toInput(w, r)
	if !ok {
		return
	}

	habit, err := h.service.Create(r.Context(), user, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCreated(string(model.KindHabit))
	}
	writeJSON(w, http.StatusCreated, toHabitResponse(habit))
}

// GetHabit は習慣詳細を返す。
// GET /api/habits/:id
func (h *HabitHandler) GetHabit(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	habit, err := h.service.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitResponse(habit))
}

// UpdateHabit は習慣を更新する。
// PUT /api/habits/:id
func (h *HabitHandler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	in, ok := h.toInput(w, r)
	if !ok {
		return
	}

	habit, err := h.service.Update(r.Context(), user, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitResponse(habit))
}

// DeleteHabit は習慣を削除する。
// DELETE /api/habits/:id
func (h *HabitHandler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
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
		h.metrics.RecordDeleted(string(model.KindHabit))
	}
	w.WriteHeader(http.StatusNoContent)
}
