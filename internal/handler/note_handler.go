package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/record"
)

// NoteServiceInterface はメモハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	List(ctx context.Context, user *model.User, page int) (record.Page[*model.Note], error)
	Create(ctx context.Context, user *model.User, in record.NoteInput) (*model.Note, error)
	Get(ctx context.Context, user *model.User, id string) (*model.Note, error)
	Update(ctx context.Context, user *model.User, id string, in record.NoteInput) (*model.Note, error)
	Delete(ctx context.Context, user *model.User, id string) error
}

// NoteHandler はメモAPIのHTTPハンドラー。
type NoteHandler struct {
	service NoteServiceInterface
	users   UserLoader
	metrics RecordMetrics
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface, users UserLoader, metrics RecordMetrics) *NoteHandler {
	return &NoteHandler{
		service: service,
		users:   users,
		metrics: metrics,
	}
}

type noteRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     string   `json:"tags"`
	GroupIDs []string `json:"group_ids"`
}

type noteResponse struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      string   `json:"tags"`
	GroupIDs  []string `json:"group_ids"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func toNoteResponse(note *model.Note) noteResponse {
	groupIDs := note.GroupIDs
	if groupIDs == nil {
		groupIDs = []string{}
	}
	return noteResponse{
		ID:        note.ID,
		OwnerID:   note.OwnerID,
		Title:     note.Title,
		Content:   note.Content,
		Tags:      note.Tags,
		GroupIDs:  groupIDs,
		CreatedAt: formatTime(note.CreatedAt),
		UpdatedAt: formatTime(note.UpdatedAt),
	}
}

func noteInput(req noteRequest) record.NoteInput {
	return record.NoteInput{
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
		GroupIDs: req.GroupIDs,
	}
}

// ListNotes は可視なメモの一覧を返す。
// GET /api/notes?page=N
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
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

	items := make([]noteResponse, len(page.Items))
	for i, note := range page.Items {
		items[i] = toNoteResponse(note)
	}
	writeJSON(w, http.StatusOK, listResponse[noteResponse]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	})
}

// CreateNote はメモを作成する。
// POST /api/notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	note, err := h.service.Create(r.Context(), user, noteInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCreated(string(model.KindNote))
	}
	writeJSON(w, http.StatusCreated, toNoteResponse(note))
}

// GetNote はメモ詳細を返す。
// GET /api/notes/:id
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	note, err := h.service.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// UpdateNote はメモを更新する。
// PUT /api/notes/:id
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	note, err := h.service.Update(r.Context(), user, chi.URLParam(r, "id"), noteInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// DeleteNote はメモを削除する。
// DELETE /api/notes/:id
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
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
		h.metrics.RecordDeleted(string(model.KindNote))
	}
	w.WriteHeader(http.StatusNoContent)
}
