// Package app はアプリケーションの起動と依存関係のワイヤリングを担う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dunedivision/taskhub/internal/auth"
	"github.com/dunedivision/taskhub/internal/config"
	"github.com/dunedivision/taskhub/internal/database"
	"github.com/dunedivision/taskhub/internal/handler"
	"github.com/dunedivision/taskhub/internal/identity"
	"github.com/dunedivision/taskhub/internal/logger"
	"github.com/dunedivision/taskhub/internal/metrics"
	"github.com/dunedivision/taskhub/internal/middleware"
	"github.com/dunedivision/taskhub/internal/notify"
	"github.com/dunedivision/taskhub/internal/record"
	"github.com/dunedivision/taskhub/internal/repository"
	"github.com/dunedivision/taskhub/internal/security"
	"github.com/dunedivision/taskhub/internal/webui"
	"github.com/dunedivision/taskhub/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPI + Webサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	groupRepo := repository.NewPostgresGroupRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)
	habitRepo := repository.NewPostgresHabitRepo(db)
	noteRepo := repository.NewPostgresNoteRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	sanitizer := security.NewContentSanitizer()

	authService := auth.NewService(userRepo, groupRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge:    cfg.SessionMaxAge,
		DefaultGroupName: cfg.DefaultGroupName,
	})

	identityService := identity.NewService(userRepo, groupRepo, identity.Config{
		AdminGroupName:   cfg.AdminGroupName,
		ElevateStaff:     cfg.ElevateStaff,
		ElevateSuperuser: cfg.ElevateSuperuser,
		DefaultGroupName: cfg.DefaultGroupName,
	})

	taskService := record.NewTaskService(taskRepo, groupRepo, sanitizer)
	habitService := record.NewHabitService(habitRepo, groupRepo, sanitizer)
	noteService := record.NewNoteService(noteRepo, groupRepo, sanitizer)
	eventService := record.NewEventService(eventRepo, groupRepo, sanitizer)

	// 5. 通知ディスパッチャの登録（イベントバス設定時のみ）
	if cfg.EventBusURL != "" {
		bus := notify.NewHTTPEventBus(
			&http.Client{Timeout: 10 * time.Second},
			slog.Default(), cfg.EventBusURL, cfg.EventBusName,
		)
		dispatcher := notify.NewDispatcher(bus, slog.Default(), collector)
		taskService.RegisterCreatedHook(dispatcher.HandleTaskCreated)
	}

	schedulerClient := notify.NewScheduler(cfg.SchedulerAPIURL, cfg.SchedulerAPIKey, cfg.SchedulerTimeout)

	// 6. Web画面の構築
	webHandler := webui.NewHandler(
		taskService, habitService, noteService, eventService,
		userRepo, authService, loc,
		webui.Config{
			DeleteRoles:   cfg.WebDeleteRoles,
			SessionMaxAge: cfg.SessionMaxAge,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
		},
	)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		IdentitySyncer: identityService,
		SessionIssuer:  authService,
		IdentitySecret: cfg.IdentitySyncSecret,

		Users: userRepo,

		TaskService:  taskService,
		HabitService: habitService,
		NoteService:  noteService,
		EventService: eventService,
		Location:     loc,

		Scheduler: schedulerClient,
		ScheduleConfig: handler.ScheduleHandlerConfig{
			BaseURL:  cfg.BaseURL,
			Timezone: cfg.Timezone,
		},

		GroupAdmin: groupRepo,

		RecordMetrics:    collector,
		SchedulerMetrics: collector,
		HTTPMetrics:      collector,
		MetricsHandler:   metrics.Handler(registry),

		Logger: slog.Default(),
		Web:    webui.NewRouter(webHandler, sessionRepo),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションのクリーンアップジョブを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.RetentionDays = cfg.SessionRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("session_retention_days", cfg.SessionRetentionDays),
	)

	// 起動直後に1回実行
	if err := cleanupJob.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped gracefully")
			return nil
		case <-ticker.C:
			if err := cleanupJob.Run(ctx); err != nil {
				slog.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
