// Package webui はサーバーレンダリングのWeb画面を提供する。
// 一覧・作成・削除のみの簡易画面で、削除はロールゲートで保護する。
// APIと異なり、削除のゲートはオブジェクト取得より先に評価する。
package webui

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dunedivision/taskhub/internal/middleware"
	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/policy"
	"github.com/dunedivision/taskhub/internal/record"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// TaskService はタスク画面が必要とするサービスインターフェース。
type TaskService interface {
	List(ctx context.Context, user *model.User, page int) (record.Page[*model.Task], error)
	Create(ctx context.Context, user *model.User, in record.TaskInput) (*model.Task, error)
	DeleteAny(ctx context.Context, id string) error
}

// HabitService は習慣画面が必要とするサービスインターフェース。
type HabitService interface {
	List(ctx context.Context, user *model.User, page int) (record.Page[*model.Habit], error)
	Create(ctx context.Context, user *model.User, in record.HabitInput) (*model.Habit, error)
	DeleteAny(ctx context.Context, id string) error
}

// NoteService はメモ画面が必要とするサービスインターフェース。
type NoteService interface {
	List(ctx context.Context, user *model.User, page int) (record.Page[*model.Note], error)
	Create(ctx context.Context, user *model.User, in record.NoteInput) (*model.Note, error)
	DeleteAny(ctx context.Context, id string) error
}

// EventService は予定画面が必要とするサービスインターフェース。
type EventService interface {
	List(ctx context.Context, user *model.User, page int) (record.Page[*model.Event], error)
	Create(ctx context.Context, user *model.User, in record.EventInput) (*model.Event, error)
	DeleteAny(ctx context.Context, id string) error
}

// UserLoader は認証済みユーザーの読み込みインターフェース。
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// LoginService はログインフォームが必要とする認証インターフェース。
type LoginService interface {
	Login(ctx context.Context, username, password string) (*model.User, *model.Session, error)
}

// Config はWeb画面の設定。
type Config struct {
	DeleteRoles   []string // 削除を許可するロール（グループ名）の集合
	SessionMaxAge int
	CookieDomain  string
	CookieSecure  bool
}

// Handler はWeb画面のHTTPハンドラー。
type Handler struct {
	tasks  TaskService
	habits HabitService
	notes  NoteService
	events EventService
	users  UserLoader
	auth   LoginService
	loc    *time.Location
	config Config

	canDelete policy.Policy
}

// NewHandler はHandlerを生成する。
func NewHandler(
	tasks TaskService,
	habits HabitService,
	notes NoteService,
	events EventService,
	users UserLoader,
	auth LoginService,
	loc *time.Location,
	config Config,
) *Handler {
	return &Handler{
		tasks:     tasks,
		habits:    habits,
		notes:     notes,
		events:    events,
		users:     users,
		auth:      auth,
		loc:       loc,
		config:    config,
		canDelete: policy.WebCanDelete(config.DeleteRoles),
	}
}

// NewRouter は/webにマウントするWeb画面のルーターを返す。
// ログイン画面と権限不足画面以外は未認証時にログイン画面へリダイレクトする。
func NewRouter(h *Handler, sessions middleware.SessionFinder) http.Handler {
	r := chi.NewRouter()

	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Get("/no-access", h.NoAccess)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewWebSessionMiddleware(sessions, "/web/login"))

		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks", h.CreateTask)
		r.Post("/tasks/{id}/delete", h.DeleteTask)

		r.Get("/habits", h.ListHabits)
		r.Post("/habits", h.CreateHabit)
		r.Post("/habits/{id}/delete", h.DeleteHabit)

		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Post("/notes/{id}/delete", h.DeleteNote)

		r.Get("/events", h.ListEvents)
		r.Post("/events", h.CreateEvent)
		r.Post("/events/{id}/delete", h.DeleteEvent)
	})

	return r
}

// loginView はログイン画面のテンプレートデータ。
type loginView struct {
	Error string
}

// listView は一覧画面のテンプレートデータ。
type listView[T any] struct {
	Items      []T
	Page       int
	TotalPages int
	PrevPage   int
	NextPage   int
	Path       string
}

func newListView[T any](page record.Page[T], path string) listView[T] {
	return listView[T]{
		Items:      page.Items,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		PrevPage:   page.Page - 1,
		NextPage:   page.Page + 1,
		Path:       path,
	}
}

func render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}

// currentUser はリクエストコンテキストのユーザーIDからユーザーを読み込む。
// セッションが無効な場合はnilを返す（呼び出し元でログイン画面へ転送）。
func (h *Handler) currentUser(r *http.Request) *model.User {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return nil
	}
	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load user", slog.String("error", err.Error()))
		return nil
	}
	return user
}

// pageParam はクエリ文字列からページ番号（1始まり）を読み取る。
// 欠落・不正値は1ページ目として扱う。
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// --- ログイン ---

// LoginPage はログインフォームを表示する。
// GET /web/login
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, "login.html", loginView{})
}

// Login はフォームからのログインを処理する。
// POST /web/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, "login.html", loginView{Error: "フォームの解析に失敗しました。"})
		return
	}

	_, session, err := h.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		render(w, "login.html", loginView{Error: "ユーザー名またはパスワードが正しくありません。"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/web/tasks", http.StatusSeeOther)
}

// NoAccess は権限不足画面を表示する。
// GET /web/no-access
func (h *Handler) NoAccess(w http.ResponseWriter, r *http.Request) {
	render(w, "no_access.html", nil)
}

// --- タスク ---

// ListTasks はタスク一覧画面を表示する。
// GET /web/tasks?page=N
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	page, err := h.tasks.List(r.Context(), user, pageParam(r))
	if err != nil {
		http.Error(w, "一覧の取得に失敗しました。", http.StatusInternalServerError)
		return
	}
	render(w, "tasks.html", newListView(page, "/web/tasks"))
}

// CreateTask はフォームからタスクを作成する。
// POST /web/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	if user == nil {
		http.Redirect(w, r, "/web/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/web/tasks", http.StatusSeeOther)
		return
	}

	dueDate, err := record.ParseOptionalTime(r.PostFormValue("due_date"), h.loc)
	if err != nil {
		http.Redirect(w, r, "/web/tasks", http.StatusSeeOther)
		return
	}

	_, err = h.tasks.Create(r.Context(), user, record.TaskInput{
		Title:    r.PostFormValue("title"),
		DueDate:  dueDate,
		Priority: model.Priority(r.PostFormValue("priority")),
		Notes:    r.PostFormValue("notes"),
	})
	if err != nil {
		slog.Warn("web task create failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/web/tasks", http.StatusSeeOther)
}

// DeleteTask はタスクを削除する。ロールゲートを取得より先に評価する。
// POST /web/tasks/{id}/delete
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	h.deleteRecord(w, r, "/web/tasks", h.tasks.DeleteAny)
}

// --- 習慣 ---

// ListHabits は習慣一覧画面を表示する。
// GET /web/habits?page=N
func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	page, err := h.habits.List(r.Context(), user, pageParam(r))
	if err != nil {
		http.Error(w, "一覧の取得に失敗しました。", http.StatusInternalServerError)
		return
	}
	render(w, "habits.html", newListView(page, "/web/habits"))
}

// CreateHabit はフォームから習慣を作成する。
// POST /web/habits
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	if user == nil {
		http.Redirect(w, r, "/web/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/web/habits", http.StatusSeeOther)
		return
	}

	_, err := h.habits.Create(r.Context(), user, record.HabitInput{
		Name:      r.PostFormValue("name"),
		Frequency: model.Frequency(r.PostFormValue("frequency")),
	})
	if err != nil {
		slog.Warn("web habit create failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/web/habits", http.StatusSeeOther)
}

// DeleteHabit は習慣を削除する。
// POST /web/habits/{id}/delete
func (h *Handler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	h.deleteRecord(w, r, "/web/habits", h.habits.DeleteAny)
}

// --- メモ ---

// ListNotes はメモ一覧画面を表示する。
// GET /web/notes?page=N
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	page, err := h.notes.List(r.Context(), user, pageParam(r))
	if err != nil {
		http.Error(w, "一覧の取得に失敗しました。", http.StatusInternalServerError)
		return
	}
	render(w, "notes.html", newListView(page, "/web/notes"))
}

// CreateNote はフォームからメモを作成する。
// POST /web/notes
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	if user == nil {
		http.Redirect(w, r, "/web/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/web/notes", http.StatusSeeOther)
		return
	}

	_, err := h.notes.Create(r.Context(), user, record.NoteInput{
		Title:   r.PostFormValue("title"),
		Content: r.PostFormValue("content"),
	})
	if err != nil {
		slog.Warn("web note create failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/web/notes", http.StatusSeeOther)
}

// DeleteNote はメモを削除する。
// POST /web/notes/{id}/delete
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	h.deleteRecord(w, r, "/web/notes", h.notes.DeleteAny)
}

// --- 予定 ---

// ListEvents は予定一覧画面を表示する。
// GET /web/events?page=N
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	page, err := h.events.List(r.Context(), user, pageParam(r))
	if err != nil {
		http.Error(w, "一覧の取得に失敗しました。", http.StatusInternalServerError)
		return
	}
	render(w, "events.html", newListView(page, "/web/events"))
}

// CreateEvent はフォームから予定を作成する。
// POST /web/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	if user == nil {
		http.Redirect(w, r, "/web/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/web/events", http.StatusSeeOther)
		return
	}

	eventDate, err := record.ParseOptionalTime(r.PostFormValue("event_date"), h.loc)
	if err != nil {
		http.Redirect(w, r, "/web/events", http.StatusSeeOther)
		return
	}

	_, err = h.events.Create(r.Context(), user, record.EventInput{
		Title:       r.PostFormValue("title"),
		EventDate:   eventDate,
		Location:    r.PostFormValue("location"),
		Description: r.PostFormValue("description"),
	})
	if err != nil {
		slog.Warn("web event create failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/web/events", http.StatusSeeOther)
}

// DeleteEvent は予定を削除する。
// POST /web/events/{id}/delete
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	h.deleteRecord(w, r, "/web/events", h.events.DeleteAny)
}

// deleteRecord はWeb画面の削除処理の共通部分。
// ロールゲートを評価してからレコードを取得・削除する。
// ゲートで拒否されたユーザーには対象の存在有無を伝えない。
func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request, listPath string, deleteAny func(ctx context.Context, id string) error) {
	user := h.currentUser(r)
	if !h.canDelete(policy.Input{User: user}) {
		http.Redirect(w, r, "/web/no-access", http.StatusSeeOther)
		return
	}

	id := chi.URLParam(r, "id")
	if err := deleteAny(r.Context(), id); err != nil {
		slog.Warn("web delete failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}
