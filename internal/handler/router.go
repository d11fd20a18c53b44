package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dunedivision/taskhub/internal/middleware"
	"github.com/dunedivision/taskhub/internal/notify"
)

// HealthChecker はヘルスチェックのDB疎通確認インターフェース。
// *sql.DBをそのまま渡せる。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HTTPMetrics はHTTPレスポンスの計測インターフェース。nil可。
type HTTPMetrics interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService    AuthServiceInterface
	AuthConfig     AuthHandlerConfig
	IdentitySyncer IdentitySyncer
	SessionIssuer  SessionIssuer
	IdentitySecret string

	// ユーザー読み込み
	Users UserLoader

	// レコード
	TaskService  TaskServiceInterface
	HabitService HabitServiceInterface
	NoteService  NoteServiceInterface
	EventService EventServiceInterface
	Location     *time.Location

	// リマインダー予約
	Scheduler      notify.SchedulerClient
	ScheduleConfig ScheduleHandlerConfig

	// 管理
	GroupAdmin GroupAdminService

	// メトリクス
	RecordMetrics    RecordMetrics
	SchedulerMetrics SchedulerMetrics
	HTTPMetrics      HTTPMetrics

	// リクエストログ出力先。nilの場合はログミドルウェアを適用しない。
	Logger *slog.Logger

	// Web画面。nilの場合は/webをマウントしない。
	Web http.Handler

	// Prometheusエクスポート。nilの場合は/metricsをマウントしない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging/Metrics → Session → RateLimit(General)
//
// 認証ルート（/auth/*）はセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.HTTPMetrics != nil {
		r.Use(newMetricsMiddleware(deps.HTTPMetrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	identityHandler := NewIdentityHandler(deps.IdentitySyncer, deps.SessionIssuer, deps.IdentitySecret, deps.AuthConfig)
	taskHandler := NewTaskHandler(deps.TaskService, deps.Users, deps.Location, deps.RecordMetrics)
	habitHandler := NewHabitHandler(deps.HabitService, deps.Users, deps.Location, deps.RecordMetrics)
	noteHandler := NewNoteHandler(deps.NoteService, deps.Users, deps.RecordMetrics)
	eventHandler := NewEventHandler(deps.EventService, deps.Users, deps.Location, deps.RecordMetrics)
	scheduleHandler := NewScheduleHandler(deps.TaskService, deps.Users, deps.Scheduler, deps.ScheduleConfig, deps.SchedulerMetrics)
	adminHandler := NewAdminHandler(deps.GroupAdmin, deps.Users)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)

		// 認証プロキシからの検証済みクレーム同期
		r.Post("/identity/sync", identityHandler.Sync)
	})

	// サーバーレンダリングのWeb画面。未認証時の扱いはWeb側のミドルウェアが持つ。
	if deps.Web != nil {
		r.Mount("/web", deps.Web)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		write := deps.RateLimiter.WriteMiddleware()

		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)
			r.With(write).Post("/", taskHandler.CreateTask)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.With(write).Put("/", taskHandler.UpdateTask)
				r.With(write).Delete("/", taskHandler.DeleteTask)
				r.With(write).Post("/schedule-reminder", scheduleHandler.ScheduleReminder)
			})
		})

		r.Route("/api/habits", func(r chi.Router) {
			r.Get("/", habitHandler.ListHabits)
			r.With(write).Post("/", habitHandler.CreateHabit)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", habitHandler.GetHabit)
				r.With(write).Put("/", habitHandler.UpdateHabit)
				r.With(write).Delete("/", habitHandler.DeleteHabit)
			})
		})

		r.Route("/api/notes", func(r chi.Router) {
			r.Get("/", noteHandler.ListNotes)
			r.With(write).Post("/", noteHandler.CreateNote)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", noteHandler.GetNote)
				r.With(write).Put("/", noteHandler.UpdateNote)
				r.With(write).Delete("/", noteHandler.DeleteNote)
			})
		})

		r.Route("/api/events", func(r chi.Router) {
			r.Get("/", eventHandler.ListEvents)
			r.With(write).Post("/", eventHandler.CreateEvent)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", eventHandler.GetEvent)
				r.With(write).Put("/", eventHandler.UpdateEvent)
				r.With(write).Delete("/", eventHandler.DeleteEvent)
			})
		})

		// グループメンバーシップ管理（スタッフのみ）
		r.Route("/api/admin/groups/{name}/members/{userID}", func(r chi.Router) {
			r.Put("/", adminHandler.AddGroupMember)
			r.Delete("/", adminHandler.RemoveGroupMember)
		})
	})

	return r
}

// newMetricsMiddleware はレスポンスのステータスとレイテンシを計測するミドルウェアを返す。
func newMetricsMiddleware(m HTTPMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec, status := middleware.StatusRecorder(w)
			next.ServeHTTP(rec, r)
			m.RecordHTTPStatus(status())
			m.RecordRequestLatency(time.Since(start))
		})
	}
}
