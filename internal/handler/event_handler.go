package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/record"
)

// EventServiceInterface は予定ハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	List(ctx context.Context, user *model.User, page int) (record.Page[*model.Event], error)
	Create(ctx context.Context, user *model.User, in record.EventInput) (*model.Event, error)
	Get(ctx context.Context, user *model.User, id string) (*model.Event, error)
	Update(ctx context.Context, user *model.User, id string, in record.EventInput) (*model.Event, error)
	Delete(ctx context.Context, user *model.User, id string) error
}

// EventHandler は予定APIのHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
	users   UserLoader
	loc     *time.Location
	metrics RecordMetrics
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface, users UserLoader, loc *time.Location, metrics RecordMetrics) *EventHandler {
	return &EventHandler{
		service: service,
		users:   users,
		loc:     loc,
		metrics: metrics,
	}
}

type eventRequest struct {
	Title       string   `json:"title"`
	EventDate   string   `json:"event_date"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Reminder    string   `json:"reminder"`
	Tags        string   `json:"tags"`
	GroupIDs    []string `json:"group_ids"`
}

type eventResponse struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Title       string   `json:"title"`
	EventDate   string   `json:"event_date"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Reminder    *string  `json:"reminder"`
	Tags        string   `json:"tags"`
	GroupIDs    []string `json:"group_ids"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toEventResponse(event *model.Event) eventResponse {
	groupIDs := event.GroupIDs
	if groupIDs == nil {
		groupIDs = []string{}
	}
	return eventResponse{
		ID:          event.ID,
		OwnerID:     event.OwnerID,
		Title:       event.Title,
		EventDate:   formatTime(event.EventDate),
		Location:    event.Location,
		Description: event.Description,
		Reminder:    formatTimePtr(event.Reminder),
		Tags:        event.Tags,
		GroupIDs:    groupIDs,
		CreatedAt:   formatTime(event.CreatedAt),
		UpdatedAt:   formatTime(event.UpdatedAt),
	}
}

func (h *EventHandler) toInput(w http.ResponseWriter, r *http.Request) (record.EventInput, bool) {
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return record.EventInput{}, false
	}

	eventDate, err := record.ParseOptionalTime(req.EventDate, h.loc)
	if err != nil {
		handleServiceError(w, err)
		return record.EventInput{}, false
	}
	reminder, err := record.ParseOptionalTime(req.Reminder, h.loc)
	if err != nil {
		handleServiceError(w, err)
		return record.EventInput{}, false
	}

	return record.EventInput{
		Title:       req.Title,
		EventDate:   eventDate,
		Location:    req.Location,
		Description: req.Description,
		Reminder:    reminder,
		Tags:        req.Tags,
		GroupIDs:    req.GroupIDs,
	}, true
}

// ListEvents は可視な予定の一覧を開催日時の昇順で返す。
// GET /api/events?page=N
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
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

	items := make([]eventResponse, len(page.Items))
	for i, event := range page.Items {
		items[i] = toEventResponse(event)
	}
	writeJSON(w, http.StatusOK, listResponse[eventResponse]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	})
}

// CreateEvent は予定を作成する。
// POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	in, ok := h.toInput(w, r)
	if !ok {
		return
	}

	event, err := h.service.Create(r.Context(), user, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCreated(string(model.KindEvent))
	}
	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

// GetEvent は予定詳細を返す。
// GET /api/events/:id
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	event, err := h.service.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

// UpdateEvent は予定を更新する。
// PUT /api/events/:id
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	in, ok := h.toInput(w, r)
	if !ok {
		return
	}

	event, err := h.service.Update(r.Context(), user, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

// DeleteEvent は予定を削除する。
// DELETE /api/events/:id
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
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
		h.metrics.RecordDeleted(string(model.KindEvent))
	}
	w.WriteHeader(http.StatusNoContent)
}
