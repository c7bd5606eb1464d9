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

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/folio/internal/auth"
	"github.com/hitoshi/folio/internal/blog"
	"github.com/hitoshi/folio/internal/config"
	"github.com/hitoshi/folio/internal/contact"
	"github.com/hitoshi/folio/internal/database"
	githubpkg "github.com/hitoshi/folio/internal/github"
	"github.com/hitoshi/folio/internal/handler"
	"github.com/hitoshi/folio/internal/identity"
	"github.com/hitoshi/folio/internal/logger"
	"github.com/hitoshi/folio/internal/metrics"
	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/preview"
	"github.com/hitoshi/folio/internal/project"
	"github.com/hitoshi/folio/internal/repository"
	"github.com/hitoshi/folio/internal/security"
	"github.com/hitoshi/folio/internal/storage"
	"github.com/hitoshi/folio/internal/upload"
	"github.com/hitoshi/folio/internal/worker/cleanup"
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

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
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
	adminRepo := repository.NewPostgresAdminRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	projectRepo := repository.NewPostgresProjectRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. IDプロバイダーとセッションゲートの初期化
	provider := identity.NewHTTPProvider(identity.HTTPProviderConfig{
		BaseURL: cfg.IdentityURL,
		APIKey:  cfg.IdentityAPIKey,
	})
	gate := auth.NewGate(provider, adminRepo, sessionRepo, auth.GateConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})

	// 永続化済みセッションからの復元。失敗してもUnauthenticatedに解決される。
	gate.Initialize(context.Background())

	// 5. オブジェクトストレージとアップロードパイプラインの初期化
	uploader, err := newUploader(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}
	uploadService := upload.NewService(uploader, upload.ServiceConfig{
		MaxSizeKB: cfg.UploadMaxSizeKB,
		Quality:   cfg.UploadQuality,
	})

	// 6. ドメインサービスの初期化
	previewFetcher := preview.NewFetcher(ssrfGuard)
	projectService := project.NewService(projectRepo, sanitizer, previewFetcher, uploadService)

	var mailer contact.Mailer
	if cfg.SMTPHost != "" {
		mailer = contact.NewSMTPMailer(contact.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPUser,
			To:       cfg.ContactRecipient,
		})
	}
	contactService := contact.NewService(contactRepo, mailer)

	// 7. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 8. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレートはreq/min単位なのでreq/secに変換する
	rateLimiterCfg.AdminRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.AdminBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ContactRate = rate.Limit(float64(cfg.RateLimitContact) / 60.0)
	rateLimiterCfg.ContactBurst = cfg.RateLimitContact
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		GuardConfig:    middleware.DefaultGuardConfig(),
		Logger:         slog.Default(),
		Collector:      collector,
		MetricsHandler: metrics.Handler(registry),

		Gate: gate,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ProjectService: projectService,
		PostLister:     postRepo,
		ContactService: contactService,
		UploadService:  uploadService,
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
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
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newUploader は設定に応じたアップロード戦略を構築する。
// directはサーバーからストレージへ直接PUTし、
// signedは署名付きURLを発行してHTTP PUTで転送する。
func newUploader(cfg *config.Config) (storage.Uploader, error) {
	client, err := minio.New(cfg.StorageEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.StorageAccessKey, cfg.StorageSecretKey, ""),
		Secure: cfg.StorageUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	if cfg.StorageUploadMode == "signed" {
		return storage.NewSignedUploader(client, cfg.StorageBucket, cfg.StoragePublicBaseURL), nil
	}
	return storage.NewDirectUploader(client, cfg.StorageBucket, cfg.StoragePublicBaseURL), nil
}

// runWorker はワーカーモードで起動する。
// ブログフィード同期、GitHubスター数バッチ、クリーンアップジョブを起動する。
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

	// 2. リポジトリの初期化
	projectRepo := repository.NewPostgresProjectRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)

	// 3. ブログフィード同期の初期化
	sanitizer := security.NewContentSanitizer()
	syncer := blog.NewSyncer(
		gofeed.NewParser(), postRepo, sanitizer,
		slog.Default(), cfg.BlogFeedURL,
	)

	// 4. GitHubスター数バッチジョブの初期化
	githubClient := githubpkg.NewClient(
		&http.Client{Timeout: 10 * time.Second},
		slog.Default(), cfg.GitHubToken,
	)
	batchCfg := githubpkg.DefaultBatchConfig()
	batchCfg.BatchInterval = cfg.StarsRefreshInterval
	batchCfg.MaxCallsPerCycle = cfg.StarsMaxCallsPerCycle
	batchCfg.StarsTTL = cfg.StarsTTL
	starsBatch := githubpkg.NewBatchJob(projectRepo, githubClient, slog.Default(), batchCfg)

	// 5. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, contactRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.MessageRetentionDays

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
		slog.Duration("blog_sync_interval", cfg.BlogSyncInterval),
		slog.Duration("stars_refresh_interval", cfg.StarsRefreshInterval),
		slog.Int("retention_days", cfg.MessageRetentionDays),
	)

	// スター数バッチとクリーンアップをバックグラウンドで起動
	go starsBatch.Start(ctx)
	go cleanupJob.Start(ctx, 24*time.Hour)

	// ブログフィード同期をメインgoroutineで実行（ブロッキング）
	if cfg.BlogFeedURL != "" {
		syncer.Start(ctx, cfg.BlogSyncInterval)
	} else {
		slog.Warn("BLOG_FEED_URL is not set; blog sync disabled")
		<-ctx.Done()
	}

	slog.Info("worker stopped gracefully")
	return nil
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
