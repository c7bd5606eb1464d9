package github

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/folio/internal/repository"
)

// StarCounter はスター数取得のインターフェース。
// テスト時にモックに差し替え可能。
type StarCounter interface {
	GetStarCount(ctx context.Context, repoURL string) (int, error)
}

// BatchConfig はバッチジョブの設定パラメータ。
// 環境変数から設定可能。
type BatchConfig struct {
	// BatchInterval はバッチジョブの実行間隔（デフォルト: 30分）。
	BatchInterval time.Duration
	// APIInterval はAPI呼び出しの最低間隔（デフォルト: 2秒）。
	APIInterval time.Duration
	// MaxCallsPerCycle は1サイクルあたりの最大API呼び出し回数（デフォルト: 30）。
	MaxCallsPerCycle int
	// StarsTTL はスター数の再取得間隔（デフォルト: 6時間）。
	StarsTTL time.Duration
}

// DefaultBatchConfig はデフォルトのバッチジョブ設定を返す。
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchInterval:    30 * time.Minute,
		APIInterval:      2 * time.Second,
		MaxCallsPerCycle: 30,
		StarsTTL:         6 * time.Hour,
	}
}

// BatchJob はGitHubスター数のバッチ取得ジョブ。
// 定期的にstars_fetched_atがNULLまたはTTLを超過したプロジェクトを対象に
// GitHub APIを呼び出してスター数を更新する。
type BatchJob struct {
	projectRepo       repository.ProjectRepository
	client            StarCounter
	logger            *slog.Logger
	config            BatchConfig
	consecutiveErrors int
	backoffUntil      time.Time
}

// NewBatchJob はBatchJobの新しいインスタンスを生成する。
func NewBatchJob(
	projectRepo repository.ProjectRepository,
	client StarCounter,
	logger *slog.Logger,
	config BatchConfig,
) *BatchJob {
	return &BatchJob{
		projectRepo: projectRepo,
		client:      client,
		logger:      logger,
		config:      config,
	}
}

// Start はバッチジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (b *BatchJob) Start(ctx context.Context) {
	ticker := time.NewTicker(b.config.BatchInterval)
	defer ticker.Stop()

	b.logger.Info("GitHubスターバッチジョブを開始しました",
		slog.Duration("batch_interval", b.config.BatchInterval),
		slog.Duration("api_interval", b.config.APIInterval),
		slog.Int("max_calls_per_cycle", b.config.MaxCallsPerCycle),
	)

	// 起動直後に1回実行
	if err := b.RunOnce(ctx); err != nil {
		b.logger.Error("GitHubスターバッチサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("GitHubスターバッチジョブを停止しました")
			return
		case <-ticker.C:
			if err := b.RunOnce(ctx); err != nil {
				b.logger.Error("GitHubスターバッチサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回のバッチサイクルを実行する。
// 取得対象のプロジェクトを取得し、1プロジェクトごとにAPIを呼び出して
// スター数を更新する。API失敗時は前回値を維持する。
func (b *BatchJob) RunOnce(ctx context.Context) error {
	start := time.Now()

	// バックオフ中の場合はスキップ
	if !b.backoffUntil.IsZero() && time.Now().Before(b.backoffUntil) {
		b.logger.Info("GitHubスターバッチジョブはバックオフ中のためスキップします",
			slog.Time("backoff_until", b.backoffUntil),
		)
		return nil
	}

	projects, err := b.projectRepo.ListNeedingStarRefresh(ctx, b.config.StarsTTL, b.config.MaxCallsPerCycle)
	if err != nil {
		return fmt.Errorf("スター取得対象プロジェクトの取得に失敗しました: %w", err)
	}

	if len(projects) == 0 {
		b.logger.Info("GitHubスター取得対象のプロジェクトはありません")
		return nil
	}

	b.logger.Info("GitHubスターバッチサイクルを開始します",
		slog.Int("target_projects", len(projects)),
	)

	var apiCallCount int
	var updatedCount int
	var hadError bool

	for _, project := range projects {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if project.RepoURL == "" {
			continue
		}

		if apiCallCount >= b.config.MaxCallsPerCycle {
			b.logger.Info("1サイクルあたりの最大API呼び出し回数に達しました",
				slog.Int("api_call_count", apiCallCount),
				slog.Int("max_calls_per_cycle", b.config.MaxCallsPerCycle),
			)
			break
		}

		// API呼び出しインターバル（初回は待たない）
		if apiCallCount > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.config.APIInterval):
			}
		}

		apiCallCount++

		count, err := b.client.GetStarCount(ctx, project.RepoURL)
		if err != nil {
			b.logger.Error("GitHubスター数の取得に失敗しました",
				slog.String("project_id", project.ID),
				slog.String("repo_url", project.RepoURL),
				slog.String("error", err.Error()),
			)
			hadError = true
			b.consecutiveErrors++
			backoff := b.calculateErrorBackoff(b.consecutiveErrors)
			if backoff > 0 {
				b.backoffUntil = time.Now().Add(backoff)
				b.logger.Warn("連続エラーによりバックオフを適用します",
					slog.Int("consecutive_errors", b.consecutiveErrors),
					slog.Duration("backoff_duration", backoff),
				)
				break
			}
			continue // このプロジェクトはスキップし前回値を維持
		}

		if err := b.projectRepo.UpdateStarCount(ctx, project.ID, count, time.Now()); err != nil {
			b.logger.Error("スター数の更新に失敗しました",
				slog.String("project_id", project.ID),
				slog.Int("count", count),
				slog.String("error", err.Error()),
			)
			continue
		}
		updatedCount++
	}

	// エラーがなければ連続エラーカウントをリセット
	if !hadError {
		b.consecutiveErrors = 0
		b.backoffUntil = time.Time{}
	}

	duration := time.Since(start)
	b.logger.Info("GitHubスターバッチサイクルが完了しました",
		slog.Int("api_call_count", apiCallCount),
		slog.Int("updated_projects", updatedCount),
		slog.Int("target_projects", len(projects)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// calculateErrorBackoff は連続エラー回数に基づくバックオフ時間を計算する。
// 3回連続: 30分、5回連続: 1時間、10回連続: 6時間。
func (b *BatchJob) calculateErrorBackoff(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors >= 10:
		return 6 * time.Hour
	case consecutiveErrors >= 5:
		return 1 * time.Hour
	case consecutiveErrors >= 3:
		return 30 * time.Minute
	default:
		return 0
	}
}
