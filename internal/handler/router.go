package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/folio/internal/metrics"
	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/model"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// GateInterface はルーターが必要とするゲートのインターフェース。
// auth.Gateがこれを満たす。
type GateInterface interface {
	AuthGateInterface
	Snapshot() model.GateSnapshot
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	GuardConfig       middleware.GuardConfig
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	MetricsHandler    http.Handler

	// 認証
	Gate       GateInterface
	AuthConfig AuthHandlerConfig

	// ドメインサービス
	ProjectService ProjectServiceInterface
	PostLister     PostListerInterface
	ContactService ContactServiceInterface
	UploadService  UploadServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → CSRF
//
// 管理ルート（/api/admin/*）はさらにルートガードと管理APIレート制限で保護する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.Gate, deps.AuthConfig, deps.Collector)
	projectHandler := NewProjectHandler(deps.ProjectService)
	postHandler := NewPostHandler(deps.PostLister)
	contactHandler := NewContactHandler(deps.ContactService)
	uploadHandler := NewUploadHandler(deps.UploadService, deps.Collector)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 認証ルート
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 公開コンテンツ
	r.Get("/api/projects", projectHandler.ListPublished)
	r.Get("/api/posts", postHandler.ListRecent)

	// POST /api/contact - 問い合わせ送信（IP単位のレート制限を適用）
	r.With(deps.RateLimiter.ContactMiddleware()).Post("/api/contact", contactHandler.Submit)

	// --- 管理ルート ---
	// ミドルウェアスタック: Guard → RateLimit(Admin)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewGuardMiddleware(deps.Gate, deps.GuardConfig))
		r.Use(deps.RateLimiter.AdminMiddleware())

		// プロジェクト管理
		r.Route("/api/admin/projects", func(r chi.Router) {
			r.Get("/", projectHandler.ListAll)
			r.Post("/", projectHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.Get)
				r.Put("/", projectHandler.Update)
				r.Delete("/", projectHandler.Delete)

				// POST /api/admin/projects/{id}/preview-image - プレビュー画像の再取得
				r.Post("/preview-image", projectHandler.RefreshPreviewImage)
			})
		})

		// 問い合わせメッセージ管理
		r.Route("/api/admin/messages", func(r chi.Router) {
			r.Get("/", contactHandler.ListMessages)
			r.Delete("/{id}", contactHandler.DeleteMessage)
		})

		// 画像アップロード
		r.Post("/api/admin/uploads", uploadHandler.Upload)
	})

	return r
}

// newHealthHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}
}
